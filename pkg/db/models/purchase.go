package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/simpify/spark-backend/pkg/enums"
)

// Purchase is one entry of a user's append-only purchase history.
type Purchase struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"-"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	Date           time.Time       `gorm:"column:purchased_at;not null" json:"date"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	PlanType       enums.PlanType  `gorm:"column:plan_type;type:text;not null" json:"planType"`
	ExternalSaleID *string         `gorm:"column:external_sale_id;uniqueIndex" json:"externalSaleId,omitempty"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime" json:"-"`
}

func (Purchase) TableName() string { return "user_purchases" }

func (p *Purchase) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

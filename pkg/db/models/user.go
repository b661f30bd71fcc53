package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/simpify/spark-backend/pkg/enums"
)

// DefaultTokenBalance is granted to every new user.
const DefaultTokenBalance = 100

// User is the central account record.
type User struct {
	ID                 uuid.UUID         `gorm:"type:uuid;primaryKey"`
	ExternalIdentityID *string           `gorm:"column:external_identity_id;uniqueIndex"`
	Email              string            `gorm:"column:email;type:text;not null;uniqueIndex"`
	Username           string            `gorm:"column:username;not null;default:''"`
	FirstName          string            `gorm:"column:first_name;not null;default:''"`
	LastName           string            `gorm:"column:last_name;not null;default:''"`
	AvatarURL          string            `gorm:"column:avatar_url;not null;default:''"`
	Provider           string            `gorm:"column:provider;not null;default:''"`
	Profile            ProfileAttributes `gorm:"embedded"`
	TokenBalance       int               `gorm:"column:token_balance;not null;default:100"`
	IsPremium          bool              `gorm:"column:is_premium;not null;default:false"`
	Subscription       *Subscription     `gorm:"column:subscription;type:jsonb;serializer:json"`
	Purchases          []Purchase        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// ProfileAttributes are the self-reported onboarding answers. They are
// replaced as a unit on every update.
type ProfileAttributes struct {
	Gender             string `gorm:"column:gender;not null;default:''" json:"gender,omitempty"`
	Age                *int   `gorm:"column:age" json:"age,omitempty"`
	Location           string `gorm:"column:location;not null;default:''" json:"location,omitempty"`
	Goal               string `gorm:"column:goal;not null;default:''" json:"goal,omitempty"`
	CommunicationStyle string `gorm:"column:communication_style;not null;default:''" json:"communicationStyle,omitempty"`
}

// Subscription is the latest billing state recorded for a user.
type Subscription struct {
	PlanType               enums.PlanType           `json:"planType"`
	Status                 enums.SubscriptionStatus `json:"status"`
	StartDate              time.Time                `json:"startDate"`
	EndDate                time.Time                `json:"endDate"`
	ExternalSubscriptionID string                   `json:"externalSubscriptionId,omitempty"`
	ExternalProductID      string                   `json:"externalProductId,omitempty"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Entitled reports whether the user may use premium features at now. The
// stored flag and status must agree; when enforceExpiry is set the end date
// must also lie in the future. Unknown plans carry no term and never expire.
func (u *User) Entitled(now time.Time, enforceExpiry bool) bool {
	if u == nil || !u.IsPremium || u.Subscription == nil {
		return false
	}
	if u.Subscription.Status != enums.SubscriptionStatusActive {
		return false
	}
	if !enforceExpiry {
		return true
	}
	return !u.Subscription.Expired(now)
}

// Expired reports whether a termed plan has passed its end date.
func (s *Subscription) Expired(now time.Time) bool {
	if s == nil || s.PlanType == enums.PlanTypeUnknown || s.EndDate.IsZero() {
		return false
	}
	return !now.Before(s.EndDate)
}

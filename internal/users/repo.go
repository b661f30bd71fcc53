package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/simpify/spark-backend/pkg/db"
	"github.com/simpify/spark-backend/pkg/db/models"
)

var errDuplicateSale = errors.New("duplicate sale")

// Repository is the GORM-backed Store.
type Repository struct {
	db *gorm.DB
}

var _ Store = (*Repository)(nil)

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

// AutoMigrate creates the user tables. Used for sqlite and local runs; real
// deployments apply the goose migrations instead.
func (r *Repository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.User{}, &models.Purchase{})
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	email, err := NormalizeEmail(dto.Email)
	if err != nil {
		return nil, err
	}
	dto.Email = email

	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Omit("Purchases").Create(user).Error; err != nil {
		return nil, mapWriteError(err)
	}
	return user, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return r.first(ctx, "email = ?", normalized)
}

func (r *Repository) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	if externalID == "" {
		return nil, ErrNotFound
	}
	return r.first(ctx, "external_identity_id = ?", externalID)
}

func (r *Repository) first(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("Purchases", func(tx *gorm.DB) *gorm.DB { return tx.Order("purchased_at ASC") }).
		Where(query, arg).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *Repository) Save(ctx context.Context, user *models.User) error {
	return r.update(r.db.WithContext(ctx), user)
}

func (r *Repository) RecordSale(ctx context.Context, user *models.User, purchase models.Purchase) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.update(tx, user); err != nil {
			return err
		}
		purchase.UserID = user.ID
		if err := tx.Create(&purchase).Error; err != nil {
			if db.IsUniqueViolation(err, "external_sale_id") {
				return errDuplicateSale
			}
			return fmt.Errorf("append purchase: %w", err)
		}
		user.Purchases = append(user.Purchases, purchase)
		return nil
	})
	if errors.Is(err, errDuplicateSale) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) ListPremium(ctx context.Context, after uuid.UUID, limit int) ([]models.User, error) {
	query := r.db.WithContext(ctx).Where("is_premium = ?", true)
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var out []models.User
	if err := query.Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) ExpirePremium(ctx context.Context, user *models.User, now time.Time) (bool, error) {
	if user == nil || user.ID == uuid.Nil {
		return false, ErrNotFound
	}
	if !user.Subscription.Expired(now) {
		return false, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND is_premium = ? AND updated_at = ?", user.ID, true, user.UpdatedAt).
		Update("is_premium", false)
	if res.Error != nil {
		return false, fmt.Errorf("expire premium: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	user.IsPremium = false
	return true, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) update(tx *gorm.DB, user *models.User) error {
	if user == nil || user.ID == uuid.Nil {
		return ErrNotFound
	}
	email, err := NormalizeEmail(user.Email)
	if err != nil {
		return err
	}
	user.Email = email

	res := tx.Model(user).
		Select("*").
		Omit("ID", "CreatedAt", "Purchases").
		Updates(user)
	if res.Error != nil {
		return mapWriteError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	switch {
	case db.IsUniqueViolation(err, "external_identity_id"):
		return fmt.Errorf("%w: %v", ErrExternalIDTaken, err)
	case db.IsUniqueViolation(err, "email"):
		return fmt.Errorf("%w: %v", ErrEmailTaken, err)
	default:
		return err
	}
}

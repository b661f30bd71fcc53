package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/simpify/spark-backend/pkg/db/models"
)

var (
	ErrNotFound        = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrExternalIDTaken = errors.New("external identity already linked")
	ErrInvalidEmail    = errors.New("invalid email")
)

// Store is the persistence surface for user records. Implementations
// normalize and validate email before every write and map uniqueness
// failures to ErrEmailTaken / ErrExternalIDTaken.
type Store interface {
	Create(ctx context.Context, dto CreateUserDTO) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
	// Save persists every mutable field except purchase history.
	Save(ctx context.Context, user *models.User) error
	// RecordSale saves user and appends purchase in one step. It reports
	// false without changing anything when purchase.ExternalSaleID was
	// already recorded.
	RecordSale(ctx context.Context, user *models.User, purchase models.Purchase) (bool, error)
	// ListPremium pages through premium users ordered by id, starting after
	// the given id (uuid.Nil for the first page).
	ListPremium(ctx context.Context, after uuid.UUID, limit int) ([]models.User, error)
	// ExpirePremium clears isPremium on a user read by ListPremium. It only
	// writes when the subscription has lapsed at now and the stored record has
	// not been updated since it was read, and reports whether it wrote.
	ExpirePremium(ctx context.Context, user *models.User, now time.Time) (bool, error)
	Ping(ctx context.Context) error
}

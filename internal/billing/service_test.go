package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/simpify/spark-backend/internal/users"
	"github.com/simpify/spark-backend/pkg/db/models"
	"github.com/simpify/spark-backend/pkg/enums"
	pkgerrors "github.com/simpify/spark-backend/pkg/errors"
)

var fixedNow = time.Date(2026, 4, 10, 8, 30, 0, 0, time.UTC)

func newBillingFixture(t *testing.T) (*Service, *users.Repository, *models.User) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := users.NewRepository(conn)
	require.NoError(t, repo.AutoMigrate(context.Background()))

	user, err := repo.Create(context.Background(), users.CreateUserDTO{Email: "a@b.com", Username: "janedoe1234"})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Users: repo,
		Plans: NewPlanTable([]string{"MONTHLY_PRO_ID"}, []string{"ANNUAL_PRO_ID"}),
		Now:   func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc, repo, user
}

func TestHandleSaleActivatesSubscription(t *testing.T) {
	svc, repo, user := newBillingFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	outcome, err := svc.HandleEvent(ctx, SaleEvent{
		UserID:         user.ID.String(),
		SaleID:         "s-1",
		ProductID:      "MONTHLY_PRO_ID",
		SubscriptionID: "sub-1",
		Price:          decimal.RequireFromString("9.99"),
		Timestamp:      start,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	stored, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPremium)
	require.NotNil(t, stored.Subscription)
	assert.Equal(t, enums.PlanTypeMonthly, stored.Subscription.PlanType)
	assert.Equal(t, enums.SubscriptionStatusActive, stored.Subscription.Status)
	assert.True(t, stored.Subscription.StartDate.Equal(start))
	assert.True(t, stored.Subscription.EndDate.Equal(start.AddDate(0, 1, 0)))
	assert.Equal(t, "sub-1", stored.Subscription.ExternalSubscriptionID)
	assert.Equal(t, "MONTHLY_PRO_ID", stored.Subscription.ExternalProductID)

	require.Len(t, stored.Purchases, 1)
	purchase := stored.Purchases[0]
	assert.True(t, purchase.Date.Equal(fixedNow))
	assert.True(t, decimal.RequireFromString("9.99").Equal(purchase.Amount))
	assert.Equal(t, enums.PlanTypeMonthly, purchase.PlanType)
	require.NotNil(t, purchase.ExternalSaleID)
	assert.Equal(t, "s-1", *purchase.ExternalSaleID)
	assert.True(t, stored.Entitled(fixedNow.Add(-time.Hour*24*60), true))
}

func TestHandleSaleWithoutTimestampStartsNow(t *testing.T) {
	svc, repo, user := newBillingFixture(t)
	ctx := context.Background()

	_, err := svc.HandleEvent(ctx, SaleEvent{UserID: user.ID.String(), SaleID: "s-1", ProductID: "ANNUAL_PRO_ID"})
	require.NoError(t, err)

	stored, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.Subscription.StartDate.Equal(fixedNow))
	assert.True(t, stored.Subscription.EndDate.Equal(fixedNow.AddDate(1, 0, 0)))
}

func TestHandleSaleUnknownProduct(t *testing.T) {
	svc, repo, user := newBillingFixture(t)
	ctx := context.Background()

	_, err := svc.HandleEvent(ctx, SaleEvent{UserID: user.ID.String(), SaleID: "s-1", ProductID: "LIFETIME", Timestamp: fixedNow})
	require.NoError(t, err)

	stored, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PlanTypeUnknown, stored.Subscription.PlanType)
	assert.True(t, stored.Subscription.EndDate.Equal(stored.Subscription.StartDate))
}

func TestHandleSaleReplayAppendsOnce(t *testing.T) {
	svc, repo, user := newBillingFixture(t)
	ctx := context.Background()
	event := SaleEvent{UserID: user.ID.String(), SaleID: "s-1", ProductID: "ANNUAL_PRO_ID", Timestamp: fixedNow}

	_, err := svc.HandleEvent(ctx, event)
	require.NoError(t, err)
	outcome, err := svc.HandleEvent(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	stored, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Purchases, 1)
}

func TestHandleSaleUnknownUser(t *testing.T) {
	svc, _, _ := newBillingFixture(t)
	ctx := context.Background()

	_, err := svc.HandleEvent(ctx, SaleEvent{UserID: uuid.NewString(), SaleID: "s-1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = svc.HandleEvent(ctx, SaleEvent{UserID: "not-a-uuid", SaleID: "s-2"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = svc.HandleEvent(ctx, SaleEvent{SaleID: "s-3"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestHandleCancellationRetainsPlan(t *testing.T) {
	svc, repo, user := newBillingFixture(t)
	ctx := context.Background()
	_, err := svc.HandleEvent(ctx, SaleEvent{UserID: user.ID.String(), SaleID: "s-1", ProductID: "ANNUAL_PRO_ID", SubscriptionID: "sub-1", Timestamp: fixedNow})
	require.NoError(t, err)

	cancelledAt := fixedNow.AddDate(0, 2, 0)
	outcome, err := svc.HandleEvent(ctx, SubscriptionCancelledEvent{SubscriptionEnd{UserID: user.ID.String(), SubscriptionID: "sub-1", CancellationDate: cancelledAt}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	stored, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPremium)
	assert.Equal(t, enums.SubscriptionStatusCancelled, stored.Subscription.Status)
	assert.True(t, stored.Subscription.EndDate.Equal(cancelledAt))
	assert.Equal(t, enums.PlanTypeAnnual, stored.Subscription.PlanType)
	assert.Equal(t, "sub-1", stored.Subscription.ExternalSubscriptionID)
	assert.Len(t, stored.Purchases, 1)
	assert.False(t, stored.Entitled(fixedNow, false))
}

func TestHandleFailureWithoutPriorSubscription(t *testing.T) {
	svc, repo, user := newBillingFixture(t)
	ctx := context.Background()

	_, err := svc.HandleEvent(ctx, SubscriptionFailedEvent{SubscriptionEnd{UserID: user.ID.String(), SubscriptionID: "sub-9"}})
	require.NoError(t, err)

	stored, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPremium)
	require.NotNil(t, stored.Subscription)
	assert.Equal(t, enums.SubscriptionStatusFailed, stored.Subscription.Status)
	assert.True(t, stored.Subscription.EndDate.Equal(fixedNow))
	assert.Equal(t, "sub-9", stored.Subscription.ExternalSubscriptionID)
}

func TestHandleUnknownEventIsIgnored(t *testing.T) {
	svc, repo, user := newBillingFixture(t)
	ctx := context.Background()

	outcome, err := svc.HandleEvent(ctx, UnknownEvent{Type: "refund"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)

	stored, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPremium)
	assert.Nil(t, stored.Subscription)
}

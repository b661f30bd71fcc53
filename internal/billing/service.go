package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/simpify/spark-backend/internal/users"
	"github.com/simpify/spark-backend/pkg/db/models"
	"github.com/simpify/spark-backend/pkg/enums"
	pkgerrors "github.com/simpify/spark-backend/pkg/errors"
	"github.com/simpify/spark-backend/pkg/logger"
)

// Outcome describes what HandleEvent did with an authentic event.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
	RecordSale(ctx context.Context, user *models.User, purchase models.Purchase) (bool, error)
}

type ServiceParams struct {
	Users  userStore
	Plans  PlanTable
	Logger *logger.Logger
	Now    func() time.Time
}

// Service applies billing events to user subscription state.
type Service struct {
	users userStore
	plans PlanTable
	logg  *logger.Logger
	now   func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user store required")
	}
	s := &Service{
		users: params.Users,
		plans: params.Plans,
		logg:  params.Logger,
		now:   params.Now,
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

// HandleEvent applies event. Unknown event kinds are ignored without error.
func (s *Service) HandleEvent(ctx context.Context, event Event) (Outcome, error) {
	if event == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "billing event required")
	}
	ctx = s.logg.WithEventType(ctx, string(event.Kind()))

	switch e := event.(type) {
	case SaleEvent:
		return s.applySale(ctx, e)
	case SubscriptionCancelledEvent:
		return s.endSubscription(ctx, e.SubscriptionEnd, enums.SubscriptionStatusCancelled)
	case SubscriptionFailedEvent:
		// TODO: notify the user that their payment failed once an email sender exists.
		return s.endSubscription(ctx, e.SubscriptionEnd, enums.SubscriptionStatusFailed)
	default:
		s.logg.Info(ctx, "billing.event_ignored")
		return OutcomeIgnored, nil
	}
}

func (s *Service) applySale(ctx context.Context, e SaleEvent) (Outcome, error) {
	user, err := s.findUser(ctx, e.UserID)
	if err != nil {
		return "", err
	}
	ctx = s.logg.WithUserID(ctx, user.ID.String())

	now := s.now()
	start := e.Timestamp
	if start.IsZero() {
		start = now
	}
	plan := s.plans.PlanFor(e.ProductID)

	user.IsPremium = true
	user.Subscription = &models.Subscription{
		PlanType:               plan,
		Status:                 enums.SubscriptionStatusActive,
		StartDate:              start,
		EndDate:                EndDate(plan, start),
		ExternalSubscriptionID: e.SubscriptionID,
		ExternalProductID:      e.ProductID,
	}
	purchase := models.Purchase{
		Date:     now,
		Amount:   e.Price,
		PlanType: plan,
	}
	if e.SaleID != "" {
		saleID := e.SaleID
		purchase.ExternalSaleID = &saleID
	}

	recorded, err := s.users.RecordSale(ctx, user, purchase)
	if err != nil {
		return "", mapStoreError(err, "record sale")
	}
	if !recorded {
		s.logg.Warn(s.logg.WithField(ctx, "sale_id", e.SaleID), "billing.sale_duplicate")
		return OutcomeDuplicate, nil
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"sale_id":   e.SaleID,
		"plan_type": plan.String(),
	}), "billing.sale_applied")
	return OutcomeApplied, nil
}

// endSubscription clears premium access and records the terminal status.
// Plan and external ids from the last sale are kept.
func (s *Service) endSubscription(ctx context.Context, e SubscriptionEnd, status enums.SubscriptionStatus) (Outcome, error) {
	user, err := s.findUser(ctx, e.UserID)
	if err != nil {
		return "", err
	}
	ctx = s.logg.WithUserID(ctx, user.ID.String())

	endDate := e.CancellationDate
	if endDate.IsZero() {
		endDate = s.now()
	}

	sub := user.Subscription
	if sub == nil {
		sub = &models.Subscription{
			PlanType:  s.plans.PlanFor(e.ProductID),
			StartDate: endDate,
		}
	}
	sub.Status = status
	sub.EndDate = endDate
	if sub.ExternalSubscriptionID == "" {
		sub.ExternalSubscriptionID = e.SubscriptionID
	}
	if sub.ExternalProductID == "" {
		sub.ExternalProductID = e.ProductID
	}
	user.Subscription = sub
	user.IsPremium = false

	if err := s.users.Save(ctx, user); err != nil {
		return "", mapStoreError(err, "save subscription")
	}
	s.logg.Info(s.logg.WithField(ctx, "status", status.String()), "billing.subscription_ended")
	return OutcomeApplied, nil
}

func (s *Service) findUser(ctx context.Context, rawID string) (*models.User, error) {
	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event is missing custom_fields.user_id")
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("user %q not found", rawID))
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "load user")
	}
	return user, nil
}

func mapStoreError(err error, op string) error {
	if errors.Is(err, users.ErrNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}

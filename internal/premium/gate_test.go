package premium

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simpify/spark-backend/pkg/auth/session"
	"github.com/simpify/spark-backend/pkg/db/models"
	"github.com/simpify/spark-backend/pkg/enums"
	pkgerrors "github.com/simpify/spark-backend/pkg/errors"
)

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func sessionFor(user *models.User) session.Session {
	return session.Session{ID: "sess-1", UserID: user.ID, User: user}
}

func activeUser(plan enums.PlanType, end time.Time) *models.User {
	return &models.User{
		ID:        uuid.New(),
		IsPremium: true,
		Subscription: &models.Subscription{
			PlanType:  plan,
			Status:    enums.SubscriptionStatusActive,
			StartDate: end.AddDate(0, -1, 0),
			EndDate:   end,
		},
	}
}

func TestRequirePremiumAllowsActiveUser(t *testing.T) {
	gate := NewGate(true, func() time.Time { return now })
	sess := sessionFor(activeUser(enums.PlanTypeMonthly, now.Add(24*time.Hour)))

	got, err := gate.RequirePremium(sess)
	require.NoError(t, err)
	assert.Equal(t, sess, got)
}

func TestRequirePremiumDenials(t *testing.T) {
	cancelled := activeUser(enums.PlanTypeMonthly, now.Add(time.Hour))
	cancelled.Subscription.Status = enums.SubscriptionStatusCancelled

	notPremium := activeUser(enums.PlanTypeMonthly, now.Add(time.Hour))
	notPremium.IsPremium = false

	noSub := &models.User{ID: uuid.New(), IsPremium: true}

	tests := []struct {
		name   string
		user   *models.User
		reason string
	}{
		{name: "flag off", user: notPremium, reason: ReasonNotPremium},
		{name: "waitlist user", user: &models.User{ID: uuid.New()}, reason: ReasonNotPremium},
		{name: "cancelled", user: cancelled, reason: ReasonInactive},
		{name: "no subscription", user: noSub, reason: ReasonInactive},
		{name: "expired", user: activeUser(enums.PlanTypeAnnual, now.Add(-time.Minute)), reason: ReasonExpired},
	}

	gate := NewGate(true, func() time.Time { return now })
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gate.RequirePremium(sessionFor(tt.user))
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
			assert.Equal(t, tt.reason, typed.Message())
		})
	}
}

func TestRequirePremiumExpiryEnforcementToggle(t *testing.T) {
	expired := sessionFor(activeUser(enums.PlanTypeMonthly, now.Add(-time.Hour)))

	_, err := NewGate(false, func() time.Time { return now }).RequirePremium(expired)
	assert.NoError(t, err, "point-in-time check ignores end date")

	unknownPlan := sessionFor(activeUser(enums.PlanTypeUnknown, now.Add(-time.Hour)))
	_, err = NewGate(true, func() time.Time { return now }).RequirePremium(unknownPlan)
	assert.NoError(t, err, "unknown plans carry no term")
}

func TestRequirePremiumWithoutUser(t *testing.T) {
	_, err := NewGate(true, nil).RequirePremium(session.Session{ID: "sess-1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestStatusFor(t *testing.T) {
	user := activeUser(enums.PlanTypeMonthly, now.Add(72*time.Hour+time.Minute))
	user.Purchases = []models.Purchase{{}, {}}

	status := StatusFor(user, now)
	assert.Equal(t, enums.PlanTypeMonthly, status.PlanType)
	require.NotNil(t, status.DaysRemaining)
	assert.Equal(t, 3, *status.DaysRemaining)
	assert.Equal(t, 2, status.Purchases)

	unknown := StatusFor(activeUser(enums.PlanTypeUnknown, now), now)
	assert.Nil(t, unknown.DaysRemaining)

	assert.Equal(t, Status{}, StatusFor(&models.User{}, now))
}

package premium

import (
	"time"

	"github.com/simpify/spark-backend/pkg/auth/session"
	"github.com/simpify/spark-backend/pkg/enums"
	pkgerrors "github.com/simpify/spark-backend/pkg/errors"
)

const (
	ReasonNotPremium = "not premium"
	ReasonInactive   = "subscription inactive"
	ReasonExpired    = "subscription expired"
)

// Gate decides whether a session may use premium features.
type Gate struct {
	enforceExpiry bool
	now           func() time.Time
}

func NewGate(enforceExpiry bool, now func() time.Time) *Gate {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Gate{enforceExpiry: enforceExpiry, now: now}
}

// RequirePremium returns sess unchanged when its user is entitled, and a
// forbidden error naming the reason otherwise.
func (g *Gate) RequirePremium(sess session.Session) (session.Session, error) {
	user := sess.User
	if user == nil {
		return sess, pkgerrors.New(pkgerrors.CodeUnauthorized, "session has no user")
	}
	if !user.IsPremium {
		return sess, pkgerrors.New(pkgerrors.CodeForbidden, ReasonNotPremium)
	}
	if user.Subscription == nil || user.Subscription.Status != enums.SubscriptionStatusActive {
		return sess, pkgerrors.New(pkgerrors.CodeForbidden, ReasonInactive)
	}
	if g.enforceExpiry && user.Subscription.Expired(g.now()) {
		return sess, pkgerrors.New(pkgerrors.CodeForbidden, ReasonExpired)
	}
	return sess, nil
}

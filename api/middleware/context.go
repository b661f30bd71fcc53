package middleware

import (
	"context"

	"github.com/simpify/spark-backend/pkg/auth/session"
)

type contextKey string

const ctxSession contextKey = "session"

// WithSession stores the resolved caller session on ctx.
func WithSession(ctx context.Context, sess session.Session) context.Context {
	return context.WithValue(ctx, ctxSession, sess)
}

// SessionFromContext returns the session installed by the Session middleware.
func SessionFromContext(ctx context.Context) (session.Session, bool) {
	if ctx == nil {
		return session.Session{}, false
	}
	sess, ok := ctx.Value(ctxSession).(session.Session)
	return sess, ok
}

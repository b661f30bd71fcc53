package middleware

import (
	"net/http"

	"github.com/simpify/spark-backend/api/responses"
	"github.com/simpify/spark-backend/pkg/auth/session"
	pkgerrors "github.com/simpify/spark-backend/pkg/errors"
	"github.com/simpify/spark-backend/pkg/logger"
)

type premiumGate interface {
	RequirePremium(sess session.Session) (session.Session, error)
}

// RequirePremium runs the premium gate against the request session. It must
// be mounted after Session.
func RequirePremium(gate premiumGate, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session"))
				return
			}
			sess, err := gate.RequirePremium(sess)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

package controllers

import (
	"net/http"
	"time"

	"github.com/simpify/spark-backend/api/middleware"
	"github.com/simpify/spark-backend/api/responses"
	"github.com/simpify/spark-backend/internal/premium"
	pkgerrors "github.com/simpify/spark-backend/pkg/errors"
	"github.com/simpify/spark-backend/pkg/logger"
)

// PremiumStatus reports the caller's subscription. Mounted behind the
// premium gate.
func PremiumStatus(now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := middleware.SessionFromContext(r.Context())
		if !ok || sess.User == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "no active session"))
			return
		}
		responses.WriteSuccess(w, premium.StatusFor(sess.User, now()))
	}
}

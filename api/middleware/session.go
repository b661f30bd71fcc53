package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/simpify/spark-backend/api/responses"
	"github.com/simpify/spark-backend/internal/users"
	pkgAuth "github.com/simpify/spark-backend/pkg/auth"
	"github.com/simpify/spark-backend/pkg/auth/session"
	"github.com/simpify/spark-backend/pkg/config"
	"github.com/simpify/spark-backend/pkg/db/models"
	pkgerrors "github.com/simpify/spark-backend/pkg/errors"
	"github.com/simpify/spark-backend/pkg/logger"
)

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Session authenticates the caller from the session cookie or a bearer
// token, checks the server-side record and loads the user.
func Session(cfg config.SessionConfig, checker session.Checker, store userLoader, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := SessionToken(r, cfg.Cookie())
			if token == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseSessionToken(cfg, token)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid session token"))
				return
			}

			userID, err := checker.Lookup(ctx, claims.ID)
			switch {
			case errors.Is(err, session.ErrUnknownSession):
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired"))
				return
			case err != nil:
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
				return
			case userID != claims.UserID:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session mismatch"))
				return
			}

			user, err := store.FindByID(ctx, userID)
			switch {
			case errors.Is(err, users.ErrNotFound):
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account not found"))
				return
			case err != nil:
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user"))
				return
			}

			if logg != nil {
				ctx = logg.WithUserID(ctx, userID.String())
				ctx = logg.WithSessionID(ctx, claims.ID)
			}
			ctx = WithSession(ctx, session.Session{ID: claims.ID, UserID: userID, User: user})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionToken reads the session token from cookieName, falling back to an
// Authorization bearer header.
func SessionToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v
		}
	}
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return ""
}

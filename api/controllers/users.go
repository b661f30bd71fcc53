package controllers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/xid"

	"github.com/simpify/spark-backend/api/middleware"
	"github.com/simpify/spark-backend/api/responses"
	"github.com/simpify/spark-backend/api/validators"
	"github.com/simpify/spark-backend/internal/auth"
	"github.com/simpify/spark-backend/internal/users"
	"github.com/simpify/spark-backend/pkg/config"
	pkgerrors "github.com/simpify/spark-backend/pkg/errors"
	"github.com/simpify/spark-backend/pkg/logger"
)

const (
	maxProfileFieldLen = 200
	maxAge             = 150
)

// UsersRegister adds an email to the waitlist.
func UsersRegister(reg auth.RegisterService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.RegisterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := reg.Register(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithUserID(r.Context(), user.ID.String()), "users.registered")
		}
		responses.WriteMessage(w, http.StatusCreated, "User added successfully")
	}
}

// UsersLogin returns the identity-provider URL and pins the OAuth state in a
// short-lived cookie.
func UsersLogin(svc auth.Service, cfg config.SessionConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := xid.New().String()
		setStateCookie(w, cfg, state)
		responses.WriteSuccess(w, auth.LoginResponse{AuthorizationURL: svc.AuthorizationURL(state)})
	}
}

// UsersCallback completes the OAuth flow, upserts the user and sets the
// session cookie.
func UsersCallback(svc auth.Service, cfg config.SessionConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		query := r.URL.Query()

		if providerErr := strings.TrimSpace(query.Get("error")); providerErr != "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "sign in was not completed").
				WithDetails(map[string]string{"error": providerErr}))
			return
		}

		if !stateMatches(r) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "oauth state mismatch"))
			return
		}

		fields, err := onboardingFromQuery(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.ResolveFromAuthCode(ctx, query.Get("code"), fields)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		clearCookie(w, cfg, oauthStateCookie)
		setSessionCookie(w, cfg, result.SessionToken, result.ExpiresAt)
		responses.WriteSuccess(w, auth.CallbackResponse{User: users.FromModel(result.User)})
	}
}

// stateMatches accepts a callback with neither a state cookie nor a state
// parameter. Once either is present both must be, with equal values.
func stateMatches(r *http.Request) bool {
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" {
		return state == ""
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) == 1
}

func onboardingFromQuery(r *http.Request) (auth.OnboardingFields, error) {
	age, err := validators.OptionalNonNegativeInt(r, "age", maxAge)
	if err != nil {
		return auth.OnboardingFields{}, err
	}
	return auth.OnboardingFields{
		Gender:             validators.QueryString(r, "gender", maxProfileFieldLen),
		Age:                age,
		Location:           validators.QueryString(r, "location", maxProfileFieldLen),
		Goal:               validators.QueryString(r, "goal", maxProfileFieldLen),
		CommunicationStyle: validators.QueryString(r, "communicationStyle", maxProfileFieldLen),
	}, nil
}

// UsersLogout revokes the current session and clears the cookie.
func UsersLogout(svc auth.Service, cfg config.SessionConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := middleware.SessionFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "no active session"))
			return
		}
		if err := svc.Logout(r.Context(), sess.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		clearCookie(w, cfg, cfg.Cookie())
		responses.WriteMessage(w, http.StatusOK, "logged out")
	}
}

// UsersMe returns the signed-in user.
func UsersMe(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := middleware.SessionFromContext(r.Context())
		if !ok || sess.User == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "no active session"))
			return
		}
		responses.WriteSuccess(w, users.FromModel(sess.User))
	}
}

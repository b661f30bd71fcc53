package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/simpify/spark-backend/internal/users"
	pkgAuth "github.com/simpify/spark-backend/pkg/auth"
	"github.com/simpify/spark-backend/pkg/config"
	"github.com/simpify/spark-backend/pkg/db/models"
	pkgerrors "github.com/simpify/spark-backend/pkg/errors"
	"github.com/simpify/spark-backend/pkg/logger"
	"github.com/simpify/spark-backend/pkg/oauth"
)

// Service resolves identity-provider logins into local users and sessions.
type Service interface {
	AuthorizationURL(state string) string
	ResolveFromAuthCode(ctx context.Context, code string, fields OnboardingFields) (*CallbackResult, error)
	Logout(ctx context.Context, sessionID string) error
}

type identityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth.Profile, error)
}

type sessionManager interface {
	Create(ctx context.Context, userID uuid.UUID) (string, error)
	Revoke(ctx context.Context, sessionID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Users          users.Store
	Provider       identityProvider
	SessionManager sessionManager
	SessionConfig  config.SessionConfig
	Logger         *logger.Logger
	Now            func() time.Time
	Username       func(first, last string) string
}

type service struct {
	users    users.Store
	provider identityProvider
	sessions sessionManager
	cfg      config.SessionConfig
	logg     *logger.Logger
	now      func() time.Time
	username func(first, last string) string
}

func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("identity provider is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	s := &service{
		users:    params.Users,
		provider: params.Provider,
		sessions: params.SessionManager,
		cfg:      params.SessionConfig,
		logg:     params.Logger,
		now:      params.Now,
		username: params.Username,
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.username == nil {
		s.username = users.GenerateUsername
	}
	return s, nil
}

func (s *service) AuthorizationURL(state string) string {
	return s.provider.AuthURL(state)
}

func (s *service) ResolveFromAuthCode(ctx context.Context, code string, fields OnboardingFields) (*CallbackResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "authorization code is required")
	}

	profile, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "authentication failed")
	}
	ctx = s.logg.WithField(ctx, "external_id", profile.ExternalID)

	user, created, err := s.upsert(ctx, profile, fields)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithUserID(ctx, user.ID.String())
	if created {
		s.logg.Info(ctx, "auth.user_created")
	}

	sessionID, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store session")
	}
	now := s.now()
	token, err := pkgAuth.MintSessionToken(s.cfg, now, pkgAuth.SessionPayload{UserID: user.ID, SessionID: sessionID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint session token")
	}

	return &CallbackResult{
		User:         user,
		Created:      created,
		SessionID:    sessionID,
		SessionToken: token,
		ExpiresAt:    now.Add(s.cfg.TTL()),
	}, nil
}

// upsert finds the user for profile, linking a waitlist record with the same
// email when no identity matches, and creates one otherwise.
func (s *service) upsert(ctx context.Context, profile *oauth.Profile, fields OnboardingFields) (*models.User, bool, error) {
	user, err := s.users.FindByExternalID(ctx, profile.ExternalID)
	switch {
	case err == nil:
		return s.refresh(ctx, user, profile, fields)
	case !errors.Is(err, users.ErrNotFound):
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user by identity")
	}

	user, err = s.users.FindByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if user.ExternalIdentityID != nil && *user.ExternalIdentityID != profile.ExternalID {
			return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "email is linked to another account")
		}
		s.logg.Info(ctx, "auth.user_linked")
		return s.refresh(ctx, user, profile, fields)
	case errors.Is(err, users.ErrInvalidEmail):
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "identity provider returned an invalid email")
	case !errors.Is(err, users.ErrNotFound):
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user by email")
	}

	externalID := profile.ExternalID
	user, err = s.users.Create(ctx, users.CreateUserDTO{
		Email:              profile.Email,
		ExternalIdentityID: &externalID,
		Username:           s.username(profile.FirstName, profile.LastName),
		FirstName:          profile.FirstName,
		LastName:           profile.LastName,
		AvatarURL:          profile.AvatarURL,
		Provider:           profile.Provider,
		Profile:            fields.toProfile(),
	})
	switch {
	case err == nil:
		return user, true, nil
	case errors.Is(err, users.ErrExternalIDTaken):
		// a concurrent callback for the same identity won the insert
		existing, findErr := s.users.FindByExternalID(ctx, profile.ExternalID)
		if findErr != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "reload user by identity")
		}
		return s.refresh(ctx, existing, profile, fields)
	case errors.Is(err, users.ErrEmailTaken):
		return nil, false, pkgerrors.New(pkgerrors.CodeConflict, "email registered concurrently, retry sign in")
	default:
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}
}

// refresh overwrites the onboarding answers and provider profile. Email is
// never changed here.
func (s *service) refresh(ctx context.Context, user *models.User, profile *oauth.Profile, fields OnboardingFields) (*models.User, bool, error) {
	externalID := profile.ExternalID
	user.ExternalIdentityID = &externalID
	user.Profile = fields.toProfile()
	if profile.FirstName != "" {
		user.FirstName = profile.FirstName
	}
	if profile.LastName != "" {
		user.LastName = profile.LastName
	}
	if profile.AvatarURL != "" {
		user.AvatarURL = profile.AvatarURL
	}
	if profile.Provider != "" {
		user.Provider = profile.Provider
	}
	if user.Username == "" {
		user.Username = s.username(user.FirstName, user.LastName)
	}

	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, users.ErrExternalIDTaken) {
			return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "identity is linked to another account")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update user")
	}
	return user, false, nil
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "no active session")
	}
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke session")
	}
	return nil
}

package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/simpify/spark-backend/internal/users"
	pkgAuth "github.com/simpify/spark-backend/pkg/auth"
	"github.com/simpify/spark-backend/pkg/config"
	"github.com/simpify/spark-backend/pkg/db/models"
	pkgerrors "github.com/simpify/spark-backend/pkg/errors"
	"github.com/simpify/spark-backend/pkg/oauth"
)

type stubProvider struct {
	profile *oauth.Profile
	err     error
	codes   []string
}

func (p *stubProvider) AuthURL(state string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (p *stubProvider) Exchange(_ context.Context, code string) (*oauth.Profile, error) {
	p.codes = append(p.codes, code)
	if p.err != nil {
		return nil, p.err
	}
	clone := *p.profile
	return &clone, nil
}

type stubSessions struct {
	created map[string]uuid.UUID
	revoked []string
	err     error
}

func newStubSessions() *stubSessions {
	return &stubSessions{created: map[string]uuid.UUID{}}
}

func (s *stubSessions) Create(_ context.Context, userID uuid.UUID) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	id := uuid.NewString()
	s.created[id] = userID
	return id, nil
}

func (s *stubSessions) Revoke(_ context.Context, sessionID string) error {
	s.revoked = append(s.revoked, sessionID)
	return nil
}

var testSessionConfig = config.SessionConfig{Secret: "secret", Issuer: "spark", TTLMinutes: 60}

func newTestStore(t *testing.T) *users.Repository {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	repo := users.NewRepository(conn)
	require.NoError(t, repo.AutoMigrate(context.Background()))
	return repo
}

func buildTestService(t *testing.T, store users.Store, provider *stubProvider, sessions *stubSessions) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Users:          store,
		Provider:       provider,
		SessionManager: sessions,
		SessionConfig:  testSessionConfig,
	})
	require.NoError(t, err)
	return svc
}

func janeProfile() *oauth.Profile {
	return &oauth.Profile{ExternalID: "ext-1", Email: "a@b.com", FirstName: "Jane", LastName: "Doe", Provider: "workos"}
}

func intPtr(v int) *int { return &v }

func TestResolveFromAuthCodeCreatesUser(t *testing.T) {
	store := newTestStore(t)
	sessions := newStubSessions()
	svc := buildTestService(t, store, &stubProvider{profile: janeProfile()}, sessions)

	res, err := svc.ResolveFromAuthCode(context.Background(), "abc123", OnboardingFields{Gender: "F", Age: intPtr(29), Goal: "clarity"})
	require.NoError(t, err)
	require.True(t, res.Created)

	user := res.User
	assert.Equal(t, "a@b.com", user.Email)
	assert.Equal(t, models.DefaultTokenBalance, user.TokenBalance)
	assert.False(t, user.IsPremium)
	assert.Regexp(t, regexp.MustCompile(`^janedoe\d{4}$`), user.Username)
	require.NotNil(t, user.ExternalIdentityID)
	assert.Equal(t, "ext-1", *user.ExternalIdentityID)
	assert.Equal(t, "clarity", user.Profile.Goal)

	assert.Equal(t, user.ID, sessions.created[res.SessionID])
	claims, err := pkgAuth.ParseSessionToken(testSessionConfig, res.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, res.SessionID, claims.ID)
}

func TestResolveFromAuthCodeTwiceKeepsOneRecord(t *testing.T) {
	store := newTestStore(t)
	svc := buildTestService(t, store, &stubProvider{profile: janeProfile()}, newStubSessions())
	ctx := context.Background()

	first, err := svc.ResolveFromAuthCode(ctx, "code-1", OnboardingFields{Goal: "clarity", Location: "Austin"})
	require.NoError(t, err)
	second, err := svc.ResolveFromAuthCode(ctx, "code-2", OnboardingFields{Gender: "M"})
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, first.User.Username, second.User.Username)

	stored, err := store.FindByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "M", stored.Profile.Gender)
	assert.Empty(t, stored.Profile.Goal, "onboarding answers are replaced, not merged")
	assert.Empty(t, stored.Profile.Location)

	premium, err := store.ListPremium(ctx, uuid.Nil, 0)
	require.NoError(t, err)
	assert.Empty(t, premium)
}

func TestResolveFromAuthCodeLinksWaitlistUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	waitlisted, err := store.Create(ctx, users.CreateUserDTO{Email: "A@B.com"})
	require.NoError(t, err)

	svc := buildTestService(t, store, &stubProvider{profile: janeProfile()}, newStubSessions())
	res, err := svc.ResolveFromAuthCode(ctx, "abc123", OnboardingFields{})
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Equal(t, waitlisted.ID, res.User.ID)
	assert.Regexp(t, `^janedoe\d{4}$`, res.User.Username)
	assert.Equal(t, "Jane", res.User.FirstName)
}

func TestResolveFromAuthCodeRejectsEmailOwnedByOtherIdentity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	other := "ext-other"
	_, err := store.Create(ctx, users.CreateUserDTO{Email: "a@b.com", ExternalIdentityID: &other})
	require.NoError(t, err)

	svc := buildTestService(t, store, &stubProvider{profile: janeProfile()}, newStubSessions())
	_, err = svc.ResolveFromAuthCode(ctx, "abc123", OnboardingFields{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestResolveFromAuthCodeMissingCode(t *testing.T) {
	provider := &stubProvider{profile: janeProfile()}
	svc := buildTestService(t, newTestStore(t), provider, newStubSessions())

	_, err := svc.ResolveFromAuthCode(context.Background(), "  ", OnboardingFields{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	assert.Empty(t, provider.codes, "provider must not be called without a code")
}

func TestResolveFromAuthCodeExchangeFailureCreatesNothing(t *testing.T) {
	store := newTestStore(t)
	sessions := newStubSessions()
	svc := buildTestService(t, store, &stubProvider{err: errors.New("invalid_grant")}, sessions)

	_, err := svc.ResolveFromAuthCode(context.Background(), "expired", OnboardingFields{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.As(err).Code())
	assert.Empty(t, sessions.created)

	_, err = store.FindByEmail(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, users.ErrNotFound)
}

func TestResolveFromAuthCodeDeterministicUsernameAndClock(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewService(ServiceParams{
		Users:          newTestStore(t),
		Provider:       &stubProvider{profile: &oauth.Profile{ExternalID: "ext-2", Email: "anon@example.com"}},
		SessionManager: newStubSessions(),
		SessionConfig:  testSessionConfig,
		Now:            func() time.Time { return now },
		Username:       func(first, last string) string { return first + last + "0000" },
	})
	require.NoError(t, err)

	res, err := svc.ResolveFromAuthCode(context.Background(), "code", OnboardingFields{})
	require.NoError(t, err)
	assert.Equal(t, "0000", res.User.Username)
	assert.Equal(t, now.Add(time.Hour), res.ExpiresAt)
}

func TestLogoutRevokesSession(t *testing.T) {
	sessions := newStubSessions()
	svc := buildTestService(t, newTestStore(t), &stubProvider{profile: janeProfile()}, sessions)

	require.NoError(t, svc.Logout(context.Background(), "sess-1"))
	assert.Equal(t, []string{"sess-1"}, sessions.revoked)

	err := svc.Logout(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestAuthorizationURLDelegatesToProvider(t *testing.T) {
	svc := buildTestService(t, newTestStore(t), &stubProvider{profile: janeProfile()}, newStubSessions())
	assert.Equal(t, "https://idp.example.com/authorize?state=xyz", svc.AuthorizationURL("xyz"))
}

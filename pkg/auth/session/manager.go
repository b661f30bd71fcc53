package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/simpify/spark-backend/pkg/config"
	"github.com/simpify/spark-backend/pkg/db/models"
	redisclient "github.com/simpify/spark-backend/pkg/redis"
)

// ErrUnknownSession is returned when the session record is missing or revoked.
var ErrUnknownSession = errors.New("unknown session")

// Session is the caller identity resolved for a request. It is passed to
// and returned from gate checks instead of living on a shared request object.
type Session struct {
	ID     string
	UserID uuid.UUID
	User   *models.User
}

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	SessionKey(sessionID string) string
}

// Checker is the read-only surface needed by middleware.
type Checker interface {
	Lookup(ctx context.Context, sessionID string) (uuid.UUID, error)
}

// Manager stores server-side session records keyed by the token jti.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	ttl   time.Duration
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.SessionConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	ttl := cfg.TTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &Manager{store: client, keyer: client, ttl: ttl}, nil
}

// Create records a new session for userID and returns its identifier.
func (m *Manager) Create(ctx context.Context, userID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", fmt.Errorf("user id is required")
	}
	sessionID := NewSessionID()
	if err := m.store.Set(ctx, m.keyer.SessionKey(sessionID), userID.String(), m.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return sessionID, nil
}

// Lookup returns the user bound to sessionID.
func (m *Manager) Lookup(ctx context.Context, sessionID string) (uuid.UUID, error) {
	if strings.TrimSpace(sessionID) == "" {
		return uuid.Nil, ErrUnknownSession
	}
	raw, err := m.store.Get(ctx, m.keyer.SessionKey(sessionID))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return uuid.Nil, ErrUnknownSession
		}
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt session record: %w", err)
	}
	return userID, nil
}

// Revoke deletes the session record. Revoking a missing session is not an error.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	return m.store.Del(ctx, m.keyer.SessionKey(sessionID))
}

// TTL is the lifetime applied to new sessions.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// NewSessionID produces the identifier used as the JWT jti and Redis key.
func NewSessionID() string {
	return uuid.NewString()
}

package billing

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// IdempotencyStore is the subset of the redis client the guard needs.
type IdempotencyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// IdempotencyGuard marks webhook deliveries as seen so provider retries of
// an already applied event are acknowledged without reprocessing.
type IdempotencyGuard struct {
	store IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{store: store, ttl: ttl, scope: scope}, nil
}

// CheckAndMark reports whether key was already marked, marking it if not.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("idempotency key is required")
	}
	set, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, key), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release clears the mark so a retried delivery is processed again.
func (g *IdempotencyGuard) Release(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("idempotency key is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, key))
}

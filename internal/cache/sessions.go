// Package cache provides a Redis read-through cache for session lookups.
// The bearer gate resolves a session on every protected request; caching the
// token-hash lookup keeps that hot path off the primary store.
package cache

import (
	"context"
	"encoding/json"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/appmint/authgate/internal/domain"
	"github.com/appmint/authgate/internal/store"
)

const (
	hashKeyPrefix = "authgate:sess:h:"
	idKeyPrefix   = "authgate:sess:id:"
)

// SessionCache decorates a SessionRepository with a Redis cache keyed by
// access-token hash. Entries carry a short TTL; revocation deletes them
// eagerly so a revoked session is rejected immediately, not after expiry.
type SessionCache struct {
	inner store.SessionRepository
	rdb   *rdb.Client
	ttl   time.Duration
}

// NewSessionCache wraps inner with a Redis cache. ttl bounds staleness for
// mutations that bypass this process.
func NewSessionCache(inner store.SessionRepository, client *rdb.Client, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SessionCache{inner: inner, rdb: client, ttl: ttl}
}

func (c *SessionCache) Create(ctx context.Context, session *domain.Session) error {
	return c.inner.Create(ctx, session)
}

func (c *SessionCache) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	return c.inner.GetByID(ctx, id)
}

func (c *SessionCache) GetByAccessTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	if b, err := c.rdb.Get(ctx, hashKeyPrefix+hash).Bytes(); err == nil {
		var s domain.Session
		if json.Unmarshal(b, &s) == nil {
			return &s, nil
		}
	}

	s, err := c.inner.GetByAccessTokenHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, hash, s)
	return s, nil
}

func (c *SessionCache) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	// Refresh lookups happen only on token refresh and revoke; not cached.
	return c.inner.GetByRefreshTokenHash(ctx, hash)
}

func (c *SessionCache) Revoke(ctx context.Context, id string) error {
	if err := c.inner.Revoke(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, id)
	return nil
}

func (c *SessionCache) TouchActivity(ctx context.Context, id string) error {
	return c.inner.TouchActivity(ctx, id)
}

func (c *SessionCache) List(ctx context.Context, userID string) ([]*domain.Session, error) {
	return c.inner.List(ctx, userID)
}

func (c *SessionCache) DeleteExpired(ctx context.Context) error {
	return c.inner.DeleteExpired(ctx)
}

func (c *SessionCache) fill(ctx context.Context, hash string, s *domain.Session) {
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	ttl := c.ttl
	if until := time.Until(s.ExpiresAt); until > 0 && until < ttl {
		ttl = until
	}
	// Cache failures are invisible to callers; the store remains the truth.
	_ = c.rdb.Set(ctx, hashKeyPrefix+hash, b, ttl).Err()
	_ = c.rdb.Set(ctx, idKeyPrefix+s.ID, hash, ttl).Err()
}

func (c *SessionCache) evict(ctx context.Context, id string) {
	hash, err := c.rdb.Get(ctx, idKeyPrefix+id).Result()
	if err == nil && hash != "" {
		_ = c.rdb.Del(ctx, hashKeyPrefix+hash).Err()
	}
	_ = c.rdb.Del(ctx, idKeyPrefix+id).Err()
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"authcore.io/internal/token"
)

const invalidKeyPrefix = "authcore:invalid"

var errRedisUnavailable = errors.New("invalid-token redis unavailable")

// InvalidTokenRepository keeps spent tokens in Redis. Each record is a key
// that expires at its PurgeAt, so Purge has nothing to do.
type InvalidTokenRepository struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ token.Repository = (*InvalidTokenRepository)(nil)

func NewInvalidTokenRepository(client redis.UniversalClient) *InvalidTokenRepository {
	return &InvalidTokenRepository{redis: client, prefix: invalidKeyPrefix, now: time.Now}
}

// WithClock returns a copy of r reading time from fn.
func (r *InvalidTokenRepository) WithClock(fn func() time.Time) *InvalidTokenRepository {
	cp := *r
	if fn != nil {
		cp.now = fn
	}
	return &cp
}

func (r *InvalidTokenRepository) key(hash string) string {
	return r.prefix + ":" + hash
}

func (r *InvalidTokenRepository) Purge(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Insert stores rec unless a record for the same hash exists. Records already
// past PurgeAt are reported as new without being written.
func (r *InvalidTokenRepository) Insert(ctx context.Context, rec token.Record) (bool, error) {
	ttl := rec.PurgeAt.Sub(r.now())
	if ttl <= 0 {
		return true, nil
	}
	ok, err := r.redis.SetNX(ctx, r.key(rec.TokenHash), rec.PurgeAt.Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return ok, nil
}

func (r *InvalidTokenRepository) Exists(ctx context.Context, tokenHash string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(tokenHash)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return n == 1, nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	appErrors "github.com/noah-isme/news-api/pkg/errors"
)

// SessionCacheRepository is the Redis-backed key/value and set store for
// sessions and cached user projections. Every Redis failure is reported as
// UPSTREAM_UNAVAILABLE; absent keys are reported as ErrCacheMiss.
type SessionCacheRepository struct {
	client redis.UniversalClient
}

// NewSessionCacheRepository constructs the repository around a shared client.
func NewSessionCacheRepository(client redis.UniversalClient) *SessionCacheRepository {
	return &SessionCacheRepository{client: client}
}

// Set stores value under key. A non-positive ttl stores without expiry.
func (r *SessionCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return appErrors.Upstream(err, "session cache set failed")
	}
	return nil
}

// Get returns the raw value or ErrCacheMiss.
func (r *SessionCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, appErrors.Upstream(err, "session cache get failed")
	}
	return raw, nil
}

// Delete removes key and reports whether it existed.
func (r *SessionCacheRepository) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, appErrors.Upstream(err, "session cache delete failed")
	}
	return n > 0, nil
}

// SetAdd adds member to the set at key.
func (r *SessionCacheRepository) SetAdd(ctx context.Context, key, member string) error {
	if err := r.client.SAdd(ctx, key, member).Err(); err != nil {
		return appErrors.Upstream(err, "session index add failed")
	}
	return nil
}

// SetRemove removes member from the set at key.
func (r *SessionCacheRepository) SetRemove(ctx context.Context, key, member string) error {
	if err := r.client.SRem(ctx, key, member).Err(); err != nil {
		return appErrors.Upstream(err, "session index remove failed")
	}
	return nil
}

// SetMembers lists the set at key. A missing set is empty.
func (r *SessionCacheRepository) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, appErrors.Upstream(err, "session index read failed")
	}
	return members, nil
}

// Expire sets the time to live on key.
func (r *SessionCacheRepository) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return appErrors.Upstream(err, "session cache expire failed")
	}
	return nil
}

// Ping checks the connection for readiness probes.
func (r *SessionCacheRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return appErrors.Upstream(err, "redis unreachable")
	}
	return nil
}

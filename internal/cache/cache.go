package cache

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache memoizes serialized list/detail responses for a short TTL. Keys are
// deterministic strings built from caller identity plus the exact filter
// parameters, so two callers or two filter combinations never collide.
// Invalidation is idempotent: removing an absent key is a no-op.
type Cache interface {
	// GetOrCompute returns the cached value for key, or runs compute, stores
	// the result under key for ttl, and returns it. Compute errors are
	// returned without caching.
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, error)

	// Invalidate removes the given keys.
	Invalidate(ctx context.Context, keys ...string) error

	// InvalidatePrefix removes every key under the given prefix.
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// Key builds a cache key from parts, e.g.
// Key("credentials", ownerID, "list") -> "credentials:42:list".
// Parts are escaped so a ":" inside one part cannot collide with the
// separator; distinct part lists always yield distinct keys.
func Key(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, part := range parts {
		escaped[i] = url.QueryEscape(part)
	}
	return strings.Join(escaped, ":")
}

// RedisCache is the shared-store implementation, used when several gateway
// replicas must agree on invalidation.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a cache on an existing redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return val, nil
	}
	// Treat any redis failure like a miss: the cache must never break reads.

	computed, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	_ = c.client.Set(ctx, key, computed, ttl).Err()
	return computed, nil
}

func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	return c.Invalidate(ctx, keys...)
}

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// window is the fixed rate-limit window. Counters live in Redis so every
// gateway replica enforces the same budget.
const window = time.Minute

// RateLimiter is a fixed-window per-caller request limiter backed by Redis.
type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

func counterKey(key string) string {
	return fmt.Sprintf("ratelimit:%s", key)
}

// AllowWithDetails records one request against the key's window and reports
// whether it fits the limit, how many requests remain, and when the window
// resets. A limit of 0 or less means unlimited; remaining is -1 then.
func (rl *RateLimiter) AllowWithDetails(ctx context.Context, key string, limit int) (bool, int, time.Time, error) {
	if limit <= 0 {
		return true, -1, time.Time{}, nil
	}

	redisKey := counterKey(key)

	count, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, time.Time{}, err
	}

	// First hit in a fresh window owns setting the expiry.
	if count == 1 {
		if err := rl.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, 0, time.Time{}, err
		}
	}

	ttl, err := rl.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return false, 0, time.Time{}, err
	}
	if ttl < 0 {
		ttl = window
	}
	resetAt := time.Now().Add(ttl)

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return count <= int64(limit), remaining, resetAt, nil
}

// GetCurrentUsage reports how many requests the key has made in the current
// window.
func (rl *RateLimiter) GetCurrentUsage(ctx context.Context, key string) (int64, error) {
	count, err := rl.client.Get(ctx, counterKey(key)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Reset clears the key's window.
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.client.Del(ctx, counterKey(key)).Err()
}

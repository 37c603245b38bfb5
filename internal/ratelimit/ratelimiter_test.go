package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRateLimiter(client), mr
}

func TestAllowWithDetails(t *testing.T) {
	t.Run("counts down to the limit", func(t *testing.T) {
		limiter, _ := newTestLimiter(t)
		ctx := context.Background()

		limit := 5
		for i := 0; i < limit; i++ {
			allowed, remaining, resetAt, err := limiter.AllowWithDetails(ctx, "caller-a", limit)
			require.NoError(t, err)
			assert.True(t, allowed)
			assert.Equal(t, limit-i-1, remaining)
			assert.False(t, resetAt.IsZero())
		}

		// One past the limit is refused with nothing remaining.
		allowed, remaining, resetAt, err := limiter.AllowWithDetails(ctx, "caller-a", limit)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, 0, remaining)
		assert.False(t, resetAt.IsZero())
	})

	t.Run("callers do not share windows", func(t *testing.T) {
		limiter, _ := newTestLimiter(t)
		ctx := context.Background()

		allowed, _, _, err := limiter.AllowWithDetails(ctx, "caller-a", 1)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, _, _, err = limiter.AllowWithDetails(ctx, "caller-a", 1)
		require.NoError(t, err)
		assert.False(t, allowed)

		// A different caller still has a fresh window.
		allowed, _, _, err = limiter.AllowWithDetails(ctx, "caller-b", 1)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("zero limit disables counting", func(t *testing.T) {
		limiter, mr := newTestLimiter(t)
		ctx := context.Background()

		for i := 0; i < 50; i++ {
			allowed, remaining, resetAt, err := limiter.AllowWithDetails(ctx, "caller-free", 0)
			require.NoError(t, err)
			assert.True(t, allowed)
			assert.Equal(t, -1, remaining)
			assert.True(t, resetAt.IsZero())
		}

		// Nothing was written to redis either.
		assert.False(t, mr.Exists(counterKey("caller-free")))
	})

	t.Run("window expiry restores the full allowance", func(t *testing.T) {
		limiter, mr := newTestLimiter(t)
		ctx := context.Background()

		limit := 2
		for i := 0; i < limit; i++ {
			allowed, _, _, err := limiter.AllowWithDetails(ctx, "caller-c", limit)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, _, _, err := limiter.AllowWithDetails(ctx, "caller-c", limit)
		require.NoError(t, err)
		assert.False(t, allowed)

		// Advance past the window; the counter key expires.
		mr.FastForward(window + time.Second)

		allowed, remaining, _, err := limiter.AllowWithDetails(ctx, "caller-c", limit)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, limit-1, remaining)
	})

	t.Run("redis outage surfaces as an error", func(t *testing.T) {
		// The caller decides the failure policy; here it only matters that
		// the limiter reports the outage instead of guessing a verdict.
		limiter, mr := newTestLimiter(t)
		mr.Close()

		_, _, _, err := limiter.AllowWithDetails(context.Background(), "caller-d", 5)
		assert.Error(t, err)
	})
}

func TestGetCurrentUsage(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	usage, err := limiter.GetCurrentUsage(ctx, "caller-e")
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage)

	for i := 0; i < 3; i++ {
		_, _, _, err := limiter.AllowWithDetails(ctx, "caller-e", 10)
		require.NoError(t, err)
	}

	usage, err = limiter.GetCurrentUsage(ctx, "caller-e")
	require.NoError(t, err)
	assert.Equal(t, int64(3), usage)
}

func TestReset(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, _, err := limiter.AllowWithDetails(ctx, "caller-f", 2)
		require.NoError(t, err)
	}
	allowed, _, _, err := limiter.AllowWithDetails(ctx, "caller-f", 2)
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "caller-f"))

	allowed, remaining, _, err := limiter.AllowWithDetails(ctx, "caller-f", 2)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, remaining)
}

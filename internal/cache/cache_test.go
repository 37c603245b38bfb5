package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

// caches under test, so both implementations run the same assertions
func implementations(t *testing.T) map[string]Cache {
	client, _ := setupTestRedis(t)
	return map[string]Cache{
		"redis":  NewRedisCache(client),
		"memory": NewMemoryCache(100),
	}
}

func TestGetOrCompute(t *testing.T) {
	for name, c := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			calls := 0
			compute := func(context.Context) ([]byte, error) {
				calls++
				return []byte(`{"count":1}`), nil
			}

			val, err := c.GetOrCompute(ctx, "credentials:alice:list", time.Minute, compute)
			require.NoError(t, err)
			assert.Equal(t, []byte(`{"count":1}`), val)
			assert.Equal(t, 1, calls)

			// Second read is served from cache.
			val, err = c.GetOrCompute(ctx, "credentials:alice:list", time.Minute, compute)
			require.NoError(t, err)
			assert.Equal(t, []byte(`{"count":1}`), val)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	for name, c := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			calls := 0
			compute := func(context.Context) ([]byte, error) {
				calls++
				if calls == 1 {
					return nil, errors.New("db down")
				}
				return []byte("ok"), nil
			}

			_, err := c.GetOrCompute(ctx, "k", time.Minute, compute)
			require.Error(t, err)

			val, err := c.GetOrCompute(ctx, "k", time.Minute, compute)
			require.NoError(t, err)
			assert.Equal(t, []byte("ok"), val)
			assert.Equal(t, 2, calls)
		})
	}
}

func TestInvalidate(t *testing.T) {
	for name, c := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed := func(key, val string) {
				_, err := c.GetOrCompute(ctx, key, time.Minute, func(context.Context) ([]byte, error) {
					return []byte(val), nil
				})
				require.NoError(t, err)
			}

			seed("credentials:alice:list", "a")
			seed("credentials:alice:detail:1", "b")

			require.NoError(t, c.Invalidate(ctx, "credentials:alice:list", "credentials:alice:detail:1"))

			// Deleting absent keys is a no-op, not an error.
			require.NoError(t, c.Invalidate(ctx, "credentials:alice:list"))
			require.NoError(t, c.Invalidate(ctx))

			calls := 0
			_, err := c.GetOrCompute(ctx, "credentials:alice:list", time.Minute, func(context.Context) ([]byte, error) {
				calls++
				return []byte("fresh"), nil
			})
			require.NoError(t, err)
			assert.Equal(t, 1, calls, "invalidated key must be recomputed")
		})
	}
}

func TestInvalidatePrefix(t *testing.T) {
	for name, c := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed := func(key string) {
				_, err := c.GetOrCompute(ctx, key, time.Minute, func(context.Context) ([]byte, error) {
					return []byte("v"), nil
				})
				require.NoError(t, err)
			}

			seed("models:alice:name=&provider=")
			seed("models:alice:name=gemma&provider=groq")
			seed("models:bob:name=&provider=")

			require.NoError(t, c.InvalidatePrefix(ctx, "models:alice:"))

			aliceCalls, bobCalls := 0, 0
			_, err := c.GetOrCompute(ctx, "models:alice:name=&provider=", time.Minute, func(context.Context) ([]byte, error) {
				aliceCalls++
				return []byte("v"), nil
			})
			require.NoError(t, err)
			_, err = c.GetOrCompute(ctx, "models:bob:name=&provider=", time.Minute, func(context.Context) ([]byte, error) {
				bobCalls++
				return []byte("v"), nil
			})
			require.NoError(t, err)

			assert.Equal(t, 1, aliceCalls, "alice's entries must be gone")
			assert.Equal(t, 0, bobCalls, "bob's entries must survive")
		})
	}
}

func TestRedisCacheTTLExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewRedisCache(client)
	ctx := context.Background()

	calls := 0
	compute := func(context.Context) ([]byte, error) {
		calls++
		return []byte("v"), nil
	}

	_, err := c.GetOrCompute(ctx, "k", time.Second, compute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, err = c.GetOrCompute(ctx, "k", time.Second, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	c := NewMemoryCache(10)
	ctx := context.Background()

	calls := 0
	compute := func(context.Context) ([]byte, error) {
		calls++
		return []byte("v"), nil
	}

	_, err := c.GetOrCompute(ctx, "k", 10*time.Millisecond, compute)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = c.GetOrCompute(ctx, "k", 10*time.Millisecond, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestMemoryCacheEviction(t *testing.T) {
	c := NewMemoryCache(2)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		_, err := c.GetOrCompute(ctx, key, time.Minute, func(context.Context) ([]byte, error) {
			return []byte(key), nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.Len(), "capacity must hold")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "credentials:alice:list", Key("credentials", "alice", "list"))

	// A ":" inside a part must not read as a part boundary, so shifting
	// characters between adjacent parts always changes the key.
	assert.NotEqual(t, Key("models", "a:b", "c"), Key("models", "a", "b:c"))
	assert.NotEqual(t, Key("models", "a", "b", "c"), Key("models", "a:b", "c"))
}

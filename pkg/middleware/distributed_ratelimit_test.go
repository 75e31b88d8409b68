package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	mr, client := newRedis(t)
	rl := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}, "test")
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		ok, remaining, err := rl.Allow(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, want, remaining)
	}
	ok, remaining, err := rl.Allow(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, remaining)

	assert.True(t, mr.Exists("test:a"))
	ttl, err := rl.TTL(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	// The window is fixed from the first hit and expires as a whole
	mr.FastForward(time.Minute)
	ok, _, err = rl.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDistributedRateLimiter_Reset(t *testing.T) {
	_, client := newRedis(t)
	rl := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}, "")
	ctx := context.Background()

	assert.Equal(t, 1, allowN(t, rl, "a", 3))
	require.NoError(t, rl.Reset(ctx, "a"))
	assert.Equal(t, 1, allowN(t, rl, "a", 3))
	assert.NoError(t, rl.HealthCheck(ctx))
	assert.Equal(t, "redis", rl.Backend())
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	mr, client := newRedis(t)
	rl := NewDistributedRateLimiter(client, nil, "test")
	mr.Close()

	ok, _, err := rl.Allow(context.Background(), "a")
	assert.Error(t, err)
	assert.True(t, ok)
	assert.Error(t, rl.HealthCheck(context.Background()))
}

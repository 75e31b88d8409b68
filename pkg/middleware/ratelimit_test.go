package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(cfg *RateLimitConfig) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := NewRateLimiter(cfg)
	rl.now = clock.Now
	return rl, clock
}

func allowN(t *testing.T, l Limiter, key string, n int) int {
	t.Helper()
	allowed := 0
	for i := 0; i < n; i++ {
		ok, _, err := l.Allow(context.Background(), key)
		require.NoError(t, err)
		if ok {
			allowed++
		}
	}
	return allowed
}

func TestRateLimiter_Allow(t *testing.T) {
	cfg := &RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Second, BurstSize: 2}
	rl, clock := newTestLimiter(cfg)

	assert.Equal(t, 12, allowN(t, rl, "a", 20))

	// Other clients have their own bucket
	assert.Equal(t, 12, allowN(t, rl, "b", 12))

	// 100ms earns one token at 10/s
	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, allowN(t, rl, "a", 5))

	clock.Advance(time.Hour)
	assert.Equal(t, 12, allowN(t, rl, "a", 20))
}

func TestRateLimiter_SlowTrickleIsNotLost(t *testing.T) {
	cfg := &RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Second}
	rl, clock := newTestLimiter(cfg)
	allowN(t, rl, "a", 10)

	// Three 40ms steps add up to one token
	for i := 0; i < 3; i++ {
		clock.Advance(40 * time.Millisecond)
		if i < 2 {
			assert.Equal(t, 0, allowN(t, rl, "a", 1))
		}
	}
	assert.Equal(t, 1, allowN(t, rl, "a", 1))
}

func TestRateLimiter_Remaining(t *testing.T) {
	cfg := &RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Second, BurstSize: 2}
	rl, _ := newTestLimiter(cfg)

	assert.Equal(t, 12, rl.Remaining("a"))
	ok, remaining, err := rl.Allow(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 11, remaining)
	assert.Equal(t, 11, rl.Remaining("a"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl, clock := newTestLimiter(&RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Second})
	allowN(t, rl, "a", 1)
	clock.Advance(500 * time.Millisecond)
	allowN(t, rl, "b", 1)
	require.Equal(t, 2, rl.Len())

	clock.Advance(1600 * time.Millisecond)
	rl.Cleanup()
	assert.Equal(t, 1, rl.Len())
}

func TestRateLimiter_InvalidConfigUsesDefault(t *testing.T) {
	for _, cfg := range []*RateLimitConfig{nil, {}, {RequestsPerWindow: 5}} {
		rl := NewRateLimiter(cfg)
		assert.Equal(t, DefaultRateLimitConfig(), rl.Config())
	}
	assert.Equal(t, "memory", NewRateLimiter(nil).Backend())
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl, _ := newTestLimiter(&RateLimitConfig{RequestsPerWindow: 50, WindowDuration: time.Hour})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := allowN(t, rl, "a", 10)
			mu.Lock()
			allowed += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

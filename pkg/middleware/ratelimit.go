package middleware

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate; ignored by the
	// distributed limiter
	BurstSize int
}

// DefaultRateLimitConfig returns default rate limit settings. Compiles are
// expensive, so the default is far below what a static file server allows.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 60,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
}

// Limiter decides whether a client may make another request
type Limiter interface {
	// Allow consumes one request for key and reports whether it was allowed
	// and how many remain in the current window
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)

	// Config returns the limits applied
	Config() *RateLimitConfig

	// Backend names the limiter in metrics
	Backend() string
}

// RateLimiter implements rate limiting using token bucket algorithm
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.Mutex
	now     func() time.Time
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil || config.RequestsPerWindow <= 0 || config.WindowDuration <= 0 {
		config = DefaultRateLimitConfig()
	}

	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Config implements Limiter
func (rl *RateLimiter) Config() *RateLimitConfig { return rl.config }

// Backend implements Limiter
func (rl *RateLimiter) Backend() string { return "memory" }

func (rl *RateLimiter) capacity() int {
	return rl.config.RequestsPerWindow + rl.config.BurstSize
}

// Allow implements Limiter; it never fails
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, int, error) {
	rl.mu.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{tokens: rl.capacity(), lastUpdate: rl.now()}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	rl.refill(b)
	if b.tokens > 0 {
		b.tokens--
		return true, b.tokens, nil
	}
	return false, 0, nil
}

// refill adds the tokens earned since the last update. lastUpdate only
// advances by whole tokens so slow trickles are not lost to rounding.
func (rl *RateLimiter) refill(b *bucket) {
	perToken := rl.config.WindowDuration / time.Duration(rl.config.RequestsPerWindow)
	if perToken <= 0 {
		perToken = time.Nanosecond
	}
	earned := int(rl.now().Sub(b.lastUpdate) / perToken)
	if earned <= 0 {
		return
	}
	b.tokens += earned
	b.lastUpdate = b.lastUpdate.Add(time.Duration(earned) * perToken)
	if b.tokens >= rl.capacity() {
		b.tokens = rl.capacity()
		b.lastUpdate = rl.now()
	}
}

// Remaining returns the number of remaining tokens for a key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	b, exists := rl.buckets[key]
	rl.mu.Unlock()

	if !exists {
		return rl.capacity()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	rl.refill(b)
	return b.tokens
}

// Cleanup removes buckets idle for two windows; they would be full again
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// Len returns the number of tracked clients
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// StartCleanup runs Cleanup every window until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

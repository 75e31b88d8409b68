package cache

import (
	"context"
	"time"

	"github.com/platinummonkey/themeforge/pkg/stylegen"
	"github.com/platinummonkey/themeforge/pkg/stylegen/config"
)

// Cache stores builds across process restarts and hosts
type Cache interface {
	// Get returns the build stored under key, or ErrCacheMiss
	Get(ctx context.Context, key *stylegen.CacheKey) (*stylegen.Build, error)

	// Set stores a build in every enabled tier
	Set(ctx context.Context, key *stylegen.CacheKey, build *stylegen.Build) error

	// Delete removes a build from every enabled tier
	Delete(ctx context.Context, key *stylegen.CacheKey) error

	// Stats returns cache statistics
	Stats(ctx context.Context) (*Stats, error)

	// Close releases resources
	Close() error
}

// Stats represents cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	HitRate   float64
	ItemCount int64
	L1Hits    int64
	L2Hits    int64
	L3Hits    int64
	Errors    int64
}

// Config holds cache configuration
type Config struct {
	// L1: in-process LRU
	EnableL1  bool
	L1MaxSize int64         // bytes
	L1TTL     time.Duration

	// L2: Redis
	EnableL2    bool
	L2Addr      string // host:port or redis:// URL
	L2Password  string
	L2DB        int
	L2TTL       time.Duration
	L2KeyPrefix string

	// L3: S3 archive, see artifacts.Config
	EnableL3 bool
}

// DefaultConfig returns default cache configuration (L1 only)
func DefaultConfig() *Config {
	return &Config{
		EnableL1:    true,
		L1MaxSize:   config.DefaultCacheMaxSize,
		L1TTL:       config.DefaultCacheTTL,
		L2TTL:       config.DefaultRemoteCacheTTL,
		L2KeyPrefix: config.DefaultRemoteKeyPrefix,
	}
}

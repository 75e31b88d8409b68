package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen"
	"github.com/platinummonkey/themeforge/pkg/stylegen/artifacts"
	"github.com/platinummonkey/themeforge/pkg/stylegen/config"
)

// MultiLevelCache layers an in-process LRU (L1), Redis (L2) and an S3
// archive (L3). Remote tier failures are logged and treated as misses.
type MultiLevelCache struct {
	config  *Config
	l1      *lru.LRU[string, *stylegen.Build]
	l2      *redis.Client
	l3      artifacts.Manager
	metrics *metrics
	prom    *observability.Metrics
	logger  *observability.Logger
}

// Option configures a MultiLevelCache
type Option func(*MultiLevelCache)

// WithRedisClient uses an existing client for L2 instead of dialling L2Addr
func WithRedisClient(client *redis.Client) Option {
	return func(c *MultiLevelCache) {
		c.l2 = client
	}
}

// WithArchive sets the L3 archive
func WithArchive(manager artifacts.Manager) Option {
	return func(c *MultiLevelCache) {
		c.l3 = manager
	}
}

// WithMetrics reports tier hits and misses to Prometheus
func WithMetrics(m *observability.Metrics) Option {
	return func(c *MultiLevelCache) {
		c.prom = m
	}
}

// WithLogger sets the logger used for degraded tier warnings
func WithLogger(logger *observability.Logger) Option {
	return func(c *MultiLevelCache) {
		c.logger = logger
	}
}

// NewCache creates a multi-level cache
func NewCache(cfg *Config, opts ...Option) (Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	c := &MultiLevelCache{
		config:  cfg,
		metrics: newMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = observability.OrDefault(c.logger)

	if cfg.EnableL1 {
		// Calculate max entries based on max size and estimated average item size
		maxEntries := int(cfg.L1MaxSize / config.DefaultCacheAvgItemSize)
		if maxEntries < 10 {
			maxEntries = 10 // Minimum 10 entries
		}
		c.l1 = lru.NewLRU[string, *stylegen.Build](maxEntries, nil, cfg.L1TTL)
	}

	if cfg.EnableL2 && c.l2 == nil {
		client, err := NewRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		c.l2 = client
	}
	if !cfg.EnableL2 {
		c.l2 = nil
	}

	if cfg.EnableL3 && c.l3 == nil {
		return nil, fmt.Errorf("L3 enabled but no archive provided")
	}
	if !cfg.EnableL3 {
		c.l3 = nil
	}

	return c, nil
}

// NewRedisClient builds the L2 client from cfg. L2Addr may be host:port or a
// redis:// URL.
func NewRedisClient(cfg *Config) (*redis.Client, error) {
	if cfg.L2Addr == "" {
		return nil, fmt.Errorf("no Redis address provided")
	}

	var opts *redis.Options
	if strings.Contains(cfg.L2Addr, "://") {
		parsed, err := redis.ParseURL(cfg.L2Addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.L2Addr}
	}
	if cfg.L2Password != "" {
		opts.Password = cfg.L2Password
	}
	if cfg.L2DB > 0 {
		opts.DB = cfg.L2DB
	}

	return redis.NewClient(opts), nil
}

// Get looks the key up in L1, then L2, then L3. Hits in a lower tier are
// promoted to the tiers above it.
func (c *MultiLevelCache) Get(ctx context.Context, key *stylegen.CacheKey) (*stylegen.Build, error) {
	if key == nil {
		return nil, ErrInvalidCacheKey
	}
	keyStr := key.String()

	if c.l1 != nil {
		if build, ok := c.l1.Get(keyStr); ok {
			c.recordHit(observability.TierL1)
			return build, nil
		}
		c.prom.RecordCacheMiss(observability.TierL1)
	}

	if c.l2 != nil {
		build, err := c.getL2(ctx, key)
		switch {
		case err == nil:
			c.recordHit(observability.TierL2)
			c.addL1(keyStr, build)
			return build, nil
		case errors.Is(err, ErrCacheMiss):
			c.prom.RecordCacheMiss(observability.TierL2)
		default:
			c.degraded(observability.TierL2, "get", keyStr, err)
		}
	}

	if c.l3 != nil {
		build, err := c.l3.Retrieve(ctx, keyStr)
		switch {
		case err == nil:
			c.recordHit(observability.TierL3)
			c.addL1(keyStr, build)
			if c.l2 != nil {
				if err := c.setL2(ctx, key, build); err != nil {
					c.degraded(observability.TierL2, "set", keyStr, err)
				}
			}
			return build, nil
		case errors.Is(err, artifacts.ErrNotFound):
			c.prom.RecordCacheMiss(observability.TierL3)
		default:
			c.degraded(observability.TierL3, "get", keyStr, err)
		}
	}

	c.metrics.recordMiss()
	return nil, ErrCacheMiss
}

// Set stores a build in every enabled tier. Remote failures are logged, not returned.
func (c *MultiLevelCache) Set(ctx context.Context, key *stylegen.CacheKey, build *stylegen.Build) error {
	if key == nil {
		return ErrInvalidCacheKey
	}
	if build == nil {
		return fmt.Errorf("build cannot be nil")
	}
	keyStr := key.String()

	c.addL1(keyStr, build)

	if c.l2 != nil {
		if err := c.setL2(ctx, key, build); err != nil {
			c.degraded(observability.TierL2, "set", keyStr, err)
		}
	}

	if c.l3 != nil {
		if _, err := c.l3.Store(ctx, keyStr, build); err != nil {
			c.degraded(observability.TierL3, "set", keyStr, err)
		}
	}

	return nil
}

// Delete removes a build from every enabled tier
func (c *MultiLevelCache) Delete(ctx context.Context, key *stylegen.CacheKey) error {
	if key == nil {
		return ErrInvalidCacheKey
	}
	keyStr := key.String()

	if c.l1 != nil {
		c.l1.Remove(keyStr)
	}

	var errs []error
	if c.l2 != nil {
		if err := c.l2.Del(ctx, c.redisKey(key)).Err(); err != nil {
			errs = append(errs, fmt.Errorf("l2 delete: %w", err))
		}
	}
	if c.l3 != nil {
		if err := c.l3.Delete(ctx, keyStr); err != nil {
			errs = append(errs, fmt.Errorf("l3 delete: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Stats returns cache statistics
func (c *MultiLevelCache) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Hits:   c.metrics.getHits(),
		Misses: c.metrics.getMisses(),
		L1Hits: c.metrics.l1Hits.Load(),
		L2Hits: c.metrics.l2Hits.Load(),
		L3Hits: c.metrics.l3Hits.Load(),
		Errors: c.metrics.errors.Load(),
	}
	if c.l1 != nil {
		stats.ItemCount = int64(c.l1.Len())
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	return stats, nil
}

// Close releases resources
func (c *MultiLevelCache) Close() error {
	if c.l1 != nil {
		c.l1.Purge()
	}
	var errs []error
	if c.l2 != nil {
		errs = append(errs, c.l2.Close())
	}
	if c.l3 != nil {
		errs = append(errs, c.l3.Close())
	}
	return errors.Join(errs...)
}

// Ping checks the L2 connection. It is nil when L2 is disabled.
func (c *MultiLevelCache) Ping(ctx context.Context) error {
	if c.l2 == nil {
		return nil
	}
	return c.l2.Ping(ctx).Err()
}

func (c *MultiLevelCache) addL1(keyStr string, build *stylegen.Build) {
	if c.l1 != nil {
		c.l1.Add(keyStr, build)
	}
}

func (c *MultiLevelCache) getL2(ctx context.Context, key *stylegen.CacheKey) (*stylegen.Build, error) {
	data, err := c.l2.Get(ctx, c.redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	build, err := artifacts.Unpack(data)
	if err != nil {
		// If unpacking fails, delete corrupt data
		c.l2.Del(ctx, c.redisKey(key))
		return nil, err
	}
	return build, nil
}

func (c *MultiLevelCache) setL2(ctx context.Context, key *stylegen.CacheKey, build *stylegen.Build) error {
	data, _, err := artifacts.Pack(build)
	if err != nil {
		return err
	}
	return c.l2.Set(ctx, c.redisKey(key), data, c.config.L2TTL).Err()
}

// redisKey namespaces the key digest, keeping Redis keys fixed-length
func (c *MultiLevelCache) redisKey(key *stylegen.CacheKey) string {
	return c.config.L2KeyPrefix + key.Digest()
}

func (c *MultiLevelCache) recordHit(tier string) {
	c.metrics.recordHit(tier)
	c.prom.RecordCacheHit(tier)
}

func (c *MultiLevelCache) degraded(tier, operation, keyStr string, err error) {
	c.metrics.errors.Add(1)
	c.prom.RecordCacheError(tier, operation)
	c.logger.WithError(err).WithFields(map[string]interface{}{
		"tier":      tier,
		"operation": operation,
		"cache_key": keyStr,
	}).Warn("remote build cache unavailable, treating as miss")
}

// metrics tracks cache metrics
type metrics struct {
	hits   atomic.Int64
	misses atomic.Int64
	l1Hits atomic.Int64
	l2Hits atomic.Int64
	l3Hits atomic.Int64
	errors atomic.Int64
}

func newMetrics() *metrics {
	return &metrics{}
}

func (m *metrics) recordHit(tier string) {
	m.hits.Add(1)
	switch tier {
	case observability.TierL1:
		m.l1Hits.Add(1)
	case observability.TierL2:
		m.l2Hits.Add(1)
	case observability.TierL3:
		m.l3Hits.Add(1)
	}
}

func (m *metrics) recordMiss() {
	m.misses.Add(1)
}

func (m *metrics) getHits() int64 {
	return m.hits.Load()
}

func (m *metrics) getMisses() int64 {
	return m.misses.Load()
}

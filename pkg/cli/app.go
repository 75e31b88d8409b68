package cli

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/themeforge/pkg/config"
	"github.com/platinummonkey/themeforge/pkg/deferred"
	"github.com/platinummonkey/themeforge/pkg/engine"
	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen"
	"github.com/platinummonkey/themeforge/pkg/stylegen/artifacts"
	"github.com/platinummonkey/themeforge/pkg/stylegen/cache"
	"github.com/platinummonkey/themeforge/pkg/stylegen/compiler"
	"github.com/platinummonkey/themeforge/pkg/stylegen/pipeline"
	"github.com/platinummonkey/themeforge/pkg/stylegen/precompiled"
	"github.com/platinummonkey/themeforge/pkg/stylegen/store"
)

// app is the wired component graph shared by build and serve
type app struct {
	cfg      *config.Config
	logger   *observability.Logger
	metrics  *observability.Metrics
	store    *store.Store
	cache    cache.Cache
	redis    *redis.Client
	compiler compiler.Compiler
	engine   *engine.Engine
	memo     *deferred.MemoTable
	closers  []func() error
}

// compilerFactory builds the configured compiler; tests substitute a fake
var compilerFactory = newCompiler

func newCompiler(ctx context.Context, cfg config.CompilerConfig, logger *observability.Logger) (compiler.Compiler, error) {
	switch cfg.Kind {
	case config.CompilerDocker:
		return compiler.NewDockerCompiler(ctx, compiler.DockerConfig{
			Image:   cfg.SassImage,
			Tag:     cfg.SassTag,
			Timeout: cfg.Timeout,
		}, logger)
	case config.CompilerExec:
		return compiler.NewExecCompiler(ctx, compiler.ExecConfig{
			Binary:  cfg.SassBinary,
			Timeout: cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown compiler: %s", cfg.Kind)
	}
}

// newApp wires store, caches, compiler, pipeline, locator and engine from
// cfg. Close releases everything opened here.
func newApp(ctx context.Context, cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.store, err = store.New(cfg.Paths.CacheRoot, logger)
	if err != nil {
		return nil, fmt.Errorf("opening artifact store: %w", err)
	}

	cacheOpts := []cache.Option{cache.WithLogger(logger), cache.WithMetrics(metrics)}
	if cfg.Cache.EnableL3 {
		archiveCfg := cfg.Archive
		archive, err := artifacts.NewS3Manager(ctx, &archiveCfg)
		if err != nil {
			return nil, fmt.Errorf("creating S3 archive: %w", err)
		}
		cacheOpts = append(cacheOpts, cache.WithArchive(archive))
	}
	cacheCfg := cfg.Cache
	if cacheCfg.EnableL2 {
		// Shared with the distributed rate limiter; the cache closes it
		a.redis, err = cache.NewRedisClient(&cacheCfg)
		if err != nil {
			return nil, fmt.Errorf("creating redis client: %w", err)
		}
		cacheOpts = append(cacheOpts, cache.WithRedisClient(a.redis))
	}
	a.cache, err = cache.NewCache(&cacheCfg, cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating build cache: %w", err)
	}
	a.closers = append(a.closers, a.cache.Close)

	a.compiler, err = compilerFactory(ctx, cfg.Compiler, logger)
	if err != nil {
		return nil, err
	}
	if c, ok := a.compiler.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	runtime := stylegen.Runtime{Root: cfg.Paths.RuntimeDir}
	p, err := pipeline.New(pipeline.Config{
		Compiler:     a.compiler,
		Store:        a.store,
		Cache:        a.cache,
		FrameworkDir: cfg.Paths.FrameworkDir,
		Runtime:      runtime,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		return nil, err
	}

	locator := precompiled.NewLocator(
		precompiled.DefaultTable(cfg.Paths.PrecompiledDir),
		runtime,
		a.store,
		precompiled.WithLogger(logger),
		precompiled.WithMetrics(metrics),
	)

	a.engine, err = engine.New(engine.Config{
		Pipeline:          p,
		Locator:           locator,
		Flags:             cfg.Flags,
		Libraries:         engine.DefaultLibraries(cfg.Paths.LibraryDir),
		MaxParallelBuilds: cfg.Compiler.MaxParallelBuilds,
		Logger:            logger,
		Metrics:           metrics,
	})
	if err != nil {
		return nil, err
	}

	a.memo = deferred.NewMemoTable(cfg.Memo.TTL, cfg.Memo.MaxEntries, metrics)
	return a, nil
}

// producer renders theme dependencies through the shared memo table
func (a *app) producer() (*deferred.Producer, error) {
	return a.engine.Producer(deferred.WithMemoTable(a.memo), deferred.WithLogger(a.logger))
}

// prune evicts store entries older than the configured age
func (a *app) prune() (int, error) {
	n, err := a.store.Prune(a.cfg.Prune.MaxAge)
	if a.metrics != nil && n > 0 {
		a.metrics.StorePrunedTotal.Add(float64(n))
	}
	return n, err
}

// Close releases resources in reverse order of creation
func (a *app) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

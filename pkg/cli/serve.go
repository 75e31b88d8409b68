package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/themeforge/pkg/api"
	"github.com/platinummonkey/themeforge/pkg/async"
	"github.com/platinummonkey/themeforge/pkg/config"
	"github.com/platinummonkey/themeforge/pkg/deferred"
	"github.com/platinummonkey/themeforge/pkg/middleware"
	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/theme"
	"github.com/platinummonkey/themeforge/pkg/watch"
)

// Version is reported by the health endpoints
var Version = "dev"

func newServeCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "serve",
		Description: "Serve theme dependencies, compiled assets and live sessions over HTTP",
	}
	cmd.Flags = newFlagSet(env, cmd.Name)

	watchFile := cmd.Flags.String("watch", "", "Theme file to watch; changes are pushed to every live session")
	port := cmd.Flags.StringP("port", "p", "", "API port (overrides THEMEFORGE_PORT)")
	cacheRoot := cmd.Flags.String("cache-root", "", "Artifact store directory (overrides THEMEFORGE_CACHE_ROOT)")
	devMode := cmd.Flags.Bool("devmode", false, "Enable devmode diagnostics")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := parseFlags(cmd, args); err != nil {
			return err
		}
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if *port != "" {
			cfg.Server.Port = *port
		}
		if *cacheRoot != "" {
			cfg.Paths.CacheRoot = *cacheRoot
		}
		if *devMode {
			cfg.Flags.DevMode = true
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return serve(ctx, env, cfg, *watchFile)
	}
	return cmd
}

func serve(ctx context.Context, env *Env, cfg *config.Config, watchFile string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := observability.NewLogger(cfg.Observability.LogLevel, env.Stderr).
		WithField("service", cfg.Observability.OTelServiceName)
	ctx = observability.WithLogger(ctx, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing OpenTelemetry: %w", err)
	}

	a, err := newApp(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}

	producer, err := a.producer()
	if err != nil {
		a.Close()
		return err
	}
	sessions := deferred.NewRegistry(metrics,
		deferred.WithSessionLogger(logger),
		deferred.WithRerunTimeout(cfg.Compiler.Timeout),
	)
	sessions.StartSweeper(ctx, cfg.Server.SessionIdleTTL, cfg.Server.SessionIdleTTL/2)

	health := observability.NewHealthChecker(Version)
	registerHealthChecks(health, a)

	server, err := api.NewServer(api.Config{
		Engine:         a.engine,
		Store:          a.store,
		Sessions:       sessions,
		Producer:       producer,
		Metrics:        metrics,
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		BaseContext:    ctx,
		RateLimit:      rateLimit(ctx, a),
	})
	if err != nil {
		a.Close()
		return err
	}

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:     healthRouter(health, registry),
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("health server", healthServer.Shutdown)

	if cfg.Prune.Enabled {
		scheduler, err := schedulePrune(a, cfg.Prune.Schedule)
		if err != nil {
			a.Close()
			return err
		}
		scheduler.Start()
		shutdown.RegisterShutdownFunc("prune scheduler", func(ctx context.Context) error {
			select {
			case <-scheduler.Stop().Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		logger.Infof("Store pruning scheduled (%s, max age %s)", cfg.Prune.Schedule, cfg.Prune.MaxAge)
	}

	shutdown.RegisterShutdownFunc("live sessions", func(context.Context) error {
		sessions.Close()
		return nil
	})
	shutdown.RegisterShutdownFunc("engine", func(context.Context) error {
		return a.Close()
	})
	shutdown.RegisterShutdownFunc("telemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	if watchFile != "" {
		w, err := watch.New(watchFile, fanOut(sessions), watch.WithLogger(env.Log))
		if err != nil {
			a.Close()
			return err
		}
		async.SafeGo(ctx, 0, "theme file watcher", w.Run)
	}

	listen := func(name string, srv *http.Server) {
		logger.Infof("Starting %s server on %s", name, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Errorf("%s server failed", name)
			cancel()
		}
	}
	go listen("health", healthServer)
	go listen("API", httpServer)

	logger.WithFields(map[string]interface{}{
		"cache_root": cfg.Paths.CacheRoot,
		"compiler":   a.compiler.Identity(),
		"devmode":    cfg.Flags.DevMode,
	}).Info("themeforge started")

	return shutdown.WaitForShutdown(ctx)
}

// fanOut pushes a reloaded theme to every live session
func fanOut(sessions *deferred.Registry) watch.ChangeFunc {
	return func(ctx context.Context, t *theme.Theme) error {
		var errs []error
		sessions.Each(func(s *deferred.LiveSession) {
			if err := s.SetTheme(t); err != nil && !errors.Is(err, deferred.ErrSessionClosed) {
				errs = append(errs, fmt.Errorf("session %s: %w", s.ID(), err))
			}
		})
		return errors.Join(errs...)
	}
}

// rateLimit builds the per-client limiter for the API. Redis backs it when
// the L2 cache is configured so replicas share one budget.
func rateLimit(ctx context.Context, a *app) func(http.Handler) http.Handler {
	if a.cfg.Server.RateLimit <= 0 {
		return nil
	}
	limitCfg := &middleware.RateLimitConfig{
		RequestsPerWindow: a.cfg.Server.RateLimit,
		WindowDuration:    time.Minute,
		BurstSize:         a.cfg.Server.RateLimitBurst,
	}

	var limiter middleware.Limiter
	if a.redis != nil {
		limiter = middleware.NewDistributedRateLimiter(a.redis, limitCfg, "themeforge:ratelimit")
	} else {
		mem := middleware.NewRateLimiter(limitCfg)
		mem.StartCleanup(ctx)
		limiter = mem
	}
	a.logger.WithField("backend", limiter.Backend()).Infof("Rate limiting API to %d requests/min", limitCfg.RequestsPerWindow)

	return middleware.NewRateLimitMiddleware(limiter,
		middleware.WithLogger(a.logger),
		middleware.WithMetrics(a.metrics),
	).Handler
}

// schedulePrune runs store pruning on a cron schedule
func schedulePrune(a *app, schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		n, err := a.prune()
		if err != nil {
			a.logger.WithError(err).Warn("Store prune failed")
			return
		}
		if n > 0 {
			a.logger.WithField("removed", n).Info("Store pruned")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	return c, nil
}

func registerHealthChecks(health *observability.HealthChecker, a *app) {
	health.Register("store", true, func(ctx context.Context) error {
		info, err := os.Stat(a.store.Root())
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", a.store.Root())
		}
		return nil
	})
	if p, ok := a.cache.(interface{ Ping(context.Context) error }); ok {
		health.Register("build_cache", false, p.Ping)
	}
}

// healthRouter serves probes and metrics on the health port
func healthRouter(health *observability.HealthChecker, gatherer prometheus.Gatherer) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", health.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/readyz", health.Readiness).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler(gatherer)).Methods(http.MethodGet)
	return router
}

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/themeforge/pkg/deferred"
	"github.com/platinummonkey/themeforge/pkg/engine"
	"github.com/platinummonkey/themeforge/pkg/httputil"
	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen/store"
)

// maxBodyBytes bounds theme definitions posted to the API
const maxBodyBytes = 1 << 20

// Config wires a Server
type Config struct {
	Engine *engine.Engine
	Store  *store.Store

	// Sessions holds live sessions; nil disables the session routes
	Sessions *deferred.Registry

	// Producer renders theme dependencies inside sessions. Defaults to
	// Engine.Producer().
	Producer *deferred.Producer

	Health   *observability.HealthChecker
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Logger   *observability.Logger

	AllowedOrigins []string
	RequestTimeout time.Duration

	// RateLimit throttles /api/v1, where requests may compile; nil disables
	RateLimit func(http.Handler) http.Handler

	// BaseContext parents live sessions, which outlive the request that
	// created them
	BaseContext context.Context
}

// Server represents our API server
type Server struct {
	engine    *engine.Engine
	store     *store.Store
	sessions  *deferred.Registry
	producer  *deferred.Producer
	health    *observability.HealthChecker
	metrics   *observability.Metrics
	gatherer  prometheus.Gatherer
	logger    *observability.Logger
	baseCtx   context.Context
	rateLimit func(http.Handler) http.Handler
	router    *mux.Router
	handler   http.Handler
}

// NewServer creates a new API server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil || cfg.Store == nil {
		return nil, errors.New("api: engine and store are required")
	}
	producer := cfg.Producer
	if producer == nil {
		var err error
		if producer, err = cfg.Engine.Producer(); err != nil {
			return nil, err
		}
	}
	baseCtx := cfg.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	s := &Server{
		engine:    cfg.Engine,
		store:     cfg.Store,
		sessions:  cfg.Sessions,
		producer:  producer,
		health:    cfg.Health,
		metrics:   cfg.Metrics,
		gatherer:  cfg.Gatherer,
		logger:    observability.OrDefault(cfg.Logger),
		baseCtx:   baseCtx,
		rateLimit: cfg.RateLimit,
		router:    mux.NewRouter(),
	}
	s.setupRoutes()
	s.handler = s.wrap(cfg)
	return s, nil
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(httputil.ContentTypeMiddleware, httputil.MaxBytesMiddleware(maxBodyBytes))
	if s.rateLimit != nil {
		api.Use(s.rateLimit)
	}

	// Dependency resolution
	api.HandleFunc("/dependencies", s.getDependencies).Methods(http.MethodGet).Name("dependencies")
	api.HandleFunc("/dependencies", s.postDependencies).Methods(http.MethodPost).Name("dependencies")

	// Live sessions
	if s.sessions != nil {
		api.HandleFunc("/sessions", s.createSession).Methods(http.MethodPost).Name("sessions")
		api.HandleFunc("/sessions/{id}", s.getSession).Methods(http.MethodGet).Name("session")
		api.HandleFunc("/sessions/{id}", s.deleteSession).Methods(http.MethodDelete).Name("session")
		api.HandleFunc("/sessions/{id}/theme", s.setSessionTheme).Methods(http.MethodPut).Name("session_theme")
		api.HandleFunc("/sessions/{id}/dependencies", s.getSessionDependencies).Methods(http.MethodGet).Name("session_dependencies")
		api.HandleFunc("/sessions/{id}/updates", s.getSessionUpdates).Methods(http.MethodGet).Name("session_updates")
	}

	// Compiled artifacts
	s.router.HandleFunc("/assets/{dir}/{file:.*}", s.getAsset).Methods(http.MethodGet, http.MethodHead).Name("assets")

	// Probes and metrics
	if s.health != nil {
		s.router.HandleFunc("/healthz", s.health.Liveness).Methods(http.MethodGet).Name("healthz")
		s.router.HandleFunc("/readyz", s.health.Readiness).Methods(http.MethodGet).Name("readyz")
	}
	if s.gatherer != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.gatherer)).Methods(http.MethodGet).Name("metrics")
	}
}

// wrap applies the middleware stack outermost-first. Route-aware
// middleware runs inside the router, after the route is matched.
func (s *Server) wrap(cfg Config) http.Handler {
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics, routeName))
	}

	middlewares := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware(s.logger),
		httputil.RequestIDMiddleware,
		s.withLogger,
		httputil.LoggingMiddleware(s.logger),
	}
	if len(cfg.AllowedOrigins) > 0 {
		middlewares = append(middlewares, httputil.CORSMiddleware(cfg.AllowedOrigins))
	}
	if cfg.RequestTimeout > 0 {
		middlewares = append(middlewares, httputil.TimeoutMiddleware(cfg.RequestTimeout))
	}

	return otelhttp.NewHandler(httputil.Chain(middlewares...)(s.router), "themeforge.http")
}

// withLogger stores the server logger in the context; FromContext adds the
// request ID
func (s *Server) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(observability.WithLogger(r.Context(), s.logger)))
	})
}

// routeName returns the mux route name, keeping metric labels bounded
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if name := route.GetName(); name != "" {
			return name
		}
	}
	return "unmatched"
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

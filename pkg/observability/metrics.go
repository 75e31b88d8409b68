package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache tiers used as label values
const (
	TierStore = "store"
	TierL1    = "l1"
	TierL2    = "l2"
	TierL3    = "l3"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Compilation metrics
	CompilationTotal       *prometheus.CounterVec
	CompilationDuration    *prometheus.HistogramVec
	CompilationErrorsTotal *prometheus.CounterVec

	// Resolution metrics
	PrecompiledTotal   *prometheus.CounterVec
	CacheHitsTotal     *prometheus.CounterVec
	CacheMissesTotal   *prometheus.CounterVec
	CacheErrorsTotal   *prometheus.CounterVec
	AssetWarningsTotal prometheus.Counter

	// Deferred producer metrics
	MemoHitsTotal       prometheus.Counter
	MemoMissesTotal     prometheus.Counter
	ProducerRerunsTotal *prometheus.CounterVec
	ActiveSessions      prometheus.Gauge
	StorePrunedTotal    prometheus.Counter

	// RateLimitedTotal counts requests rejected by the API rate limiter
	RateLimitedTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "themeforge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "themeforge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		CompilationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "themeforge_compilation_total",
				Help: "Total number of stylesheet compilations",
			},
			[]string{"compiler", "status"},
		),
		CompilationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "themeforge_compilation_duration_seconds",
				Help:    "Stylesheet compilation duration in seconds",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"compiler"},
		),
		CompilationErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "themeforge_compilation_errors_total",
				Help: "Total number of failed compilations",
			},
			[]string{"compiler", "error_type"},
		),

		PrecompiledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "themeforge_precompiled_total",
				Help: "Precompiled fast path lookups by outcome",
			},
			[]string{"outcome"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "themeforge_cache_hits_total",
				Help: "Total number of build cache hits",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "themeforge_cache_misses_total",
				Help: "Total number of build cache misses",
			},
			[]string{"tier"},
		),
		CacheErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "themeforge_cache_errors_total",
				Help: "Remote cache failures degraded to misses",
			},
			[]string{"tier", "operation"},
		),
		AssetWarningsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "themeforge_asset_copy_warnings_total",
				Help: "Auxiliary files that could not be copied next to a stylesheet",
			},
		),

		MemoHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "themeforge_memo_hits_total",
				Help: "Deferred producer calls served from the memo table",
			},
		),
		MemoMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "themeforge_memo_misses_total",
				Help: "Deferred producer calls that invoked the producer",
			},
		),
		ProducerRerunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "themeforge_producer_reruns_total",
				Help: "Producer re-invocations triggered by a session theme change",
			},
			[]string{"status"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "themeforge_active_sessions",
				Help: "Number of open live sessions",
			},
		),
		StorePrunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "themeforge_store_pruned_total",
				Help: "Artifact directories removed by pruning",
			},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "themeforge_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"backend"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CompilationTotal,
		m.CompilationDuration,
		m.CompilationErrorsTotal,
		m.PrecompiledTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheErrorsTotal,
		m.AssetWarningsTotal,
		m.MemoHitsTotal,
		m.MemoMissesTotal,
		m.ProducerRerunsTotal,
		m.ActiveSessions,
		m.StorePrunedTotal,
		m.RateLimitedTotal,
	)

	return m
}

// RecordCompilation records the outcome of a compiler invocation
func (m *Metrics) RecordCompilation(compiler string, duration time.Duration, errorType string) {
	if m == nil {
		return
	}
	status := "success"
	if errorType != "" {
		status = "failure"
		m.CompilationErrorsTotal.WithLabelValues(compiler, errorType).Inc()
	}
	m.CompilationTotal.WithLabelValues(compiler, status).Inc()
	m.CompilationDuration.WithLabelValues(compiler).Observe(duration.Seconds())
}

// RecordCacheHit records a hit in a cache tier
func (m *Metrics) RecordCacheHit(tier string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records a miss in a cache tier
func (m *Metrics) RecordCacheMiss(tier string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(tier).Inc()
}

// RecordCacheError records a remote tier failure that was treated as a miss
func (m *Metrics) RecordCacheError(tier, operation string) {
	if m == nil {
		return
	}
	m.CacheErrorsTotal.WithLabelValues(tier, operation).Inc()
}

// RecordPrecompiled records a precompiled lookup outcome: hit, miss or ineligible
func (m *Metrics) RecordPrecompiled(outcome string) {
	if m == nil {
		return
	}
	m.PrecompiledTotal.WithLabelValues(outcome).Inc()
}

// RecordAssetWarnings adds n asset copy warnings
func (m *Metrics) RecordAssetWarnings(n int) {
	if m == nil || n == 0 {
		return
	}
	m.AssetWarningsTotal.Add(float64(n))
}

// RecordMemo records a memo table lookup
func (m *Metrics) RecordMemo(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.MemoHitsTotal.Inc()
		return
	}
	m.MemoMissesTotal.Inc()
}

// RecordRerun records a producer re-invocation by a live session
func (m *Metrics) RecordRerun(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.ProducerRerunsTotal.WithLabelValues(status).Inc()
}

// RecordRateLimited records a request rejected by a rate limiter backend
func (m *Metrics) RecordRateLimited(backend string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(backend).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// routeName maps a request to a low-cardinality route label.
func HTTPMetricsMiddleware(metrics *Metrics, routeName func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if routeName != nil {
				route = routeName(r)
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

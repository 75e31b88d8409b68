package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/platinummonkey/themeforge/pkg/httputil"
	"github.com/platinummonkey/themeforge/pkg/observability"
)

// RateLimitMiddleware provides HTTP rate limiting
type RateLimitMiddleware struct {
	limiter  Limiter
	keyFunc  func(*http.Request) string
	logger   *observability.Logger
	metrics  *observability.Metrics
	failOpen bool
}

// Option configures a RateLimitMiddleware
type Option func(*RateLimitMiddleware)

// WithKeyFunc replaces ClientIP as the client key
func WithKeyFunc(fn func(*http.Request) string) Option {
	return func(m *RateLimitMiddleware) { m.keyFunc = fn }
}

// WithLogger sets the logger for backend errors
func WithLogger(logger *observability.Logger) Option {
	return func(m *RateLimitMiddleware) { m.logger = logger }
}

// WithMetrics records rejections
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *RateLimitMiddleware) { m.metrics = metrics }
}

// WithFailClosed answers 503 instead of serving when the backend errors
func WithFailClosed() Option {
	return func(m *RateLimitMiddleware) { m.failOpen = false }
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter Limiter, opts ...Option) *RateLimitMiddleware {
	m := &RateLimitMiddleware{
		limiter:  limiter,
		keyFunc:  ClientIP,
		failOpen: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = observability.OrDefault(m.logger)
	return m
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + m.keyFunc(r)
		cfg := m.limiter.Config()

		allowed, remaining, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			observability.FromContextOr(r.Context(), m.logger).
				WithError(err).
				WithField("backend", m.limiter.Backend()).
				Warn("rate limiter unavailable")
			if !m.failOpen {
				httputil.WriteServiceUnavailable(w, "rate limiter unavailable")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			m.metrics.RecordRateLimited(m.limiter.Backend())
			retryAfter := int(math.Ceil(cfg.WindowDuration.Seconds() / float64(cfg.RequestsPerWindow)))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteTooManyRequests(w, fmt.Sprintf("rate limit exceeded, retry after %ds", retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the originating client address: the first
// X-Forwarded-For entry, then X-Real-IP, then the connection's host
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/themeforge/pkg/observability"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, int, error) {
	return false, 0, errors.New("backend down")
}
func (failingLimiter) Config() *RateLimitConfig { return DefaultRateLimitConfig() }
func (failingLimiter) Backend() string          { return "failing" }

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dependencies", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitMiddleware(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Hour})
	h := NewRateLimitMiddleware(limiter, WithMetrics(metrics), WithLogger(observability.NopLogger())).Handler(okHandler)

	rec := serve(h, "10.0.0.1:5000")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	// Port changes do not create a new client
	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:5001").Code)

	rec = serve(h, "10.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1800", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RateLimitedTotal.WithLabelValues("memory")))

	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.2:5000").Code)
}

func TestRateLimitMiddleware_BackendErrors(t *testing.T) {
	open := NewRateLimitMiddleware(failingLimiter{}, WithLogger(observability.NopLogger())).Handler(okHandler)
	assert.Equal(t, http.StatusOK, serve(open, "10.0.0.1:1").Code)

	closed := NewRateLimitMiddleware(failingLimiter{}, WithFailClosed(), WithLogger(observability.NopLogger())).Handler(okHandler)
	assert.Equal(t, http.StatusServiceUnavailable, serve(closed, "10.0.0.1:1").Code)
}

func TestRateLimitMiddleware_KeyFunc(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Hour})
	h := NewRateLimitMiddleware(limiter, WithKeyFunc(func(*http.Request) string { return "everyone" })).Handler(okHandler)

	assert.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "10.0.0.2:1").Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"remote without port", nil, "192.0.2.1", "192.0.2.1"},
		{"ipv6 remote", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:1", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": " 203.0.113.9 "}, "10.0.0.2:1", "203.0.113.9"},
		{"blank forwarded falls through", map[string]string{"X-Forwarded-For": " ,10.0.0.1"}, "10.0.0.2:1", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

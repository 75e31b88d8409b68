// Package middleware provides rate limiting for the API routes that can
// trigger stylesheet compilation.
//
// # Backends
//
// RateLimiter: in-memory token bucket, one bucket per client
//
//	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
//	limiter.StartCleanup(ctx)
//
// DistributedRateLimiter: fixed window counters in Redis, shared by every
// replica; uses the build cache's Redis client when one is configured
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, cfg, "themeforge:ratelimit")
//
// # HTTP
//
//	mw := middleware.NewRateLimitMiddleware(limiter, middleware.WithLogger(logger))
//	router.Use(mw.Handler)
//
// Clients are keyed by ClientIP. Responses carry X-RateLimit-Limit and
// X-RateLimit-Remaining; rejected requests get 429 with Retry-After. Backend
// errors fail open.
//
// # Defaults
//
// 60 requests per minute with a burst of 10.
package middleware

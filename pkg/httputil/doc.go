// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, deps)
//	httputil.WriteCreated(w, session)
//	httputil.WriteNotFoundError(w, "unknown session")
//	httputil.WriteDetailedError(w, http.StatusUnprocessableEntity, err, details)
//
// Every error body has the shape {"error": "..."} with optional details.
//
// # Request Parsing
//
//	var req resolveRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	key, ok := httputil.ParsePathStringOrError(w, r, "key")
//	sourceMap, err := httputil.ParseQueryBool(r, "source_map", false)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RecoveryMiddleware(logger),
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.TimeoutMiddleware(30*time.Second),
//	)
//
// TimeoutMiddleware only bounds the request context; handlers that compile
// observe cancellation through it.
//
// # Related Packages
//
//   - pkg/middleware: per-client rate limiting for the API
package httputil

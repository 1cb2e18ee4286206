// Package middleware provides the HTTP middleware stack of the GUI server.
//
//   - CORS: cross-origin access for the IDE frame
//   - RateLimit: per-IP token buckets with idle eviction and skipped prefixes
//   - RequestID: X-Request-ID propagation
//   - Logger: one zap line per request
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.Logger(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware

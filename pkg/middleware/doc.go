// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// # Overview
//
// AuthMiddleware resolves Bearer API tokens to a caller identity and stores
// the profile ID in the request context. It performs no permission checks;
// every row-level decision happens inside pkg/store against the caller's
// stored role, so a stale context can never grant access.
//
// # Middleware Components
//
// AuthMiddleware: token authentication
//
//	authMW := middleware.NewAuthMiddleware(tokenManager, false)
//	router.Use(authMW.Handler)
//	// handlers read the caller with middleware.GetIdentity(r)
//
// RateLimitMiddleware: in-memory rate limiting
//
//	router.Use(middleware.NewRateLimitMiddleware().Handler)
//
// DistributedRateLimitMiddleware: Redis-backed rate limiting, shared
// across instances
//
//	router.Use(middleware.NewDistributedRateLimitMiddleware(redisClient).Handler)
//
// # Rate Limiting
//
// Anonymous: 100 req/min, 10 burst, keyed by client IP
// Authenticated: 1000 req/min, 50 burst, keyed by profile ID
//
// # Related Packages
//
//   - pkg/identity: token validation
//   - pkg/authz: row-level permission checks
package middleware

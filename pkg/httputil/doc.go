// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error responses,
// parameter parsing, validation, and common HTTP middleware patterns.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteNoContent(w)
//
// Error responses:
//
//	httputil.WriteDomainError(w, err) // maps authz/store errors to statuses
//	httputil.WriteBadRequest(w, "Invalid input")
//	httputil.WriteUnauthorized(w, "Token expired")
//
// WriteDomainError is the preferred path for handler errors: it maps
// unauthenticated callers to 401, denied operations to 403, missing rows to
// 404, duplicates to 409, and invalid enum values to 400.
//
// # Request Parsing
//
// JSON parsing:
//
//	var req CreateProjectRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// Path parameters:
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
//
// # Middleware
//
// RequestIDMiddleware, LoggingMiddleware, RecoveryMiddleware, and
// MaxBytesMiddleware are func(http.Handler) http.Handler and install
// directly on a mux router:
//
//	router.Use(httputil.RequestIDMiddleware)
//	router.Use(httputil.LoggingMiddleware(logger))
//	router.Use(httputil.RecoveryMiddleware(logger))
//	router.Use(httputil.MaxBytesMiddleware(10 << 20))
//
// # Related Packages
//
//   - pkg/middleware: Authentication and rate limiting middleware
package httputil

// Package contextkeys provides centralized context key definitions
//
// All context keys shared across packages live here so handlers and
// middleware agree on the types stored under each key.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains the caller's profile ID string.
	// Set by: middleware.AuthMiddleware after token validation
	// Required by: all store and gateway operations
	IdentityKey Key = "identity"
)

// WithIdentity adds the caller's profile ID to the context
func WithIdentity(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, IdentityKey, userID)
}

// GetIdentity retrieves the caller's profile ID, empty when unauthenticated
func GetIdentity(ctx context.Context) string {
	if userID, ok := ctx.Value(IdentityKey).(string); ok {
		return userID
	}
	return ""
}

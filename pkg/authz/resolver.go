package authz

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultCacheSize = 4096

// Resolver looks up the role stored on a caller's profile. Lookups are
// read-only and idempotent: resolving the same identity twice within one
// authorization decision returns the same answer and performs no policy
// evaluation of its own.
type Resolver struct {
	l1    *lru.LRU[string, Role]
	cache RoleCache // optional shared cache behind the L1
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithRoleCache adds a shared cache layer (typically Redis) consulted on L1
// misses and updated on successful lookups.
func WithRoleCache(cache RoleCache) ResolverOption {
	return func(r *Resolver) {
		r.cache = cache
	}
}

// NewResolver creates a role resolver. A ttl of zero disables the in-process
// cache so every resolution hits the store.
func NewResolver(ttl time.Duration, opts ...ResolverOption) *Resolver {
	r := &Resolver{}
	if ttl > 0 {
		r.l1 = lru.NewLRU[string, Role](defaultCacheSize, nil, ttl)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveRole returns the role on the stored profile for identity. A missing
// profile fails with ErrUnauthenticated; a stored value outside the closed
// role enumeration fails with InvalidValueError. Only successful lookups are
// cached.
func (r *Resolver) ResolveRole(ctx context.Context, q Querier, identity string) (Role, error) {
	if identity == "" {
		return "", ErrUnauthenticated
	}

	if r.l1 != nil {
		if role, ok := r.l1.Get(identity); ok {
			return role, nil
		}
	}

	if r.cache != nil {
		if role, ok, err := r.cache.Get(ctx, identity); err == nil && ok {
			if r.l1 != nil {
				r.l1.Add(identity, role)
			}
			return role, nil
		}
	}

	var role Role
	err := q.QueryRowContext(ctx, `SELECT role FROM profiles WHERE id = $1`, identity).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrUnauthenticated
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve role: %w", err)
	}

	if !role.IsValid() {
		return "", &InvalidValueError{Field: "role", Value: string(role)}
	}

	if r.l1 != nil {
		r.l1.Add(identity, role)
	}
	if r.cache != nil {
		// Best effort; the store remains authoritative.
		_ = r.cache.Set(ctx, identity, role)
	}

	return role, nil
}

// Invalidate drops any cached role for identity. Call after a role change so
// the next decision observes the new role.
func (r *Resolver) Invalidate(ctx context.Context, identity string) {
	if r.l1 != nil {
		r.l1.Remove(identity)
	}
	if r.cache != nil {
		_ = r.cache.Invalidate(ctx, identity)
	}
}

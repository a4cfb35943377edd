package authz

import (
	"context"
	"time"
)

// DecisionObserver is notified after every evaluation, allow or deny. Used to
// wire metrics and audit without coupling the engine to either.
type DecisionObserver func(identity string, resource Resource, op Operation, target Target, decision Decision)

// Engine evaluates per-resource, per-operation rules. Every decision is a
// pure, synchronous computation over the querier it is handed; running the
// check and the guarded mutation on the same transaction closes the
// check-then-act race.
type Engine struct {
	resolver  *Resolver
	observers []DecisionObserver

	profiles    profilePolicy
	projects    projectPolicy
	assignments assignmentPolicy
	documents   documentPolicy
	objects     objectPolicy
}

// NewEngine creates a policy engine backed by the given role resolver
func NewEngine(resolver *Resolver, observers ...DecisionObserver) *Engine {
	return &Engine{
		resolver:  resolver,
		observers: observers,
	}
}

// Resolver returns the engine's role resolver
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// Authorize decides whether identity may perform op on the targeted resource.
// Role resolution happens first: an identity without a profile fails with
// ErrUnauthenticated before any rule runs. Relationship predicates are only
// consulted when the matching rule needs them, after the cheaper role and
// identity comparisons. Resources or operations with no rule deny.
func (e *Engine) Authorize(ctx context.Context, q Querier, identity string, resource Resource, op Operation, target Target) (Decision, error) {
	role, err := e.resolver.ResolveRole(ctx, q, identity)
	if err != nil {
		return Decision{}, err
	}

	var decision Decision
	switch resource {
	case ResourceProfile:
		decision, err = e.profiles.Evaluate(ctx, q, identity, role, op, target)
	case ResourceProject:
		decision, err = e.projects.Evaluate(ctx, q, identity, role, op, target)
	case ResourceAssignment:
		decision, err = e.assignments.Evaluate(ctx, q, identity, role, op, target)
	case ResourceDocument:
		decision, err = e.documents.Evaluate(ctx, q, identity, role, op, target)
	case ResourceObject:
		decision, err = e.objects.Evaluate(ctx, q, identity, role, op, target)
	default:
		decision = deny("no policy for resource "+string(resource), role)
	}
	if err != nil {
		return Decision{}, err
	}

	for _, observe := range e.observers {
		observe(identity, resource, op, target, decision)
	}

	return decision, nil
}

// Require is Authorize collapsed to an error: nil on allow, a DeniedError
// wrapping ErrDenied otherwise.
func (e *Engine) Require(ctx context.Context, q Querier, identity string, resource Resource, op Operation, target Target) error {
	decision, err := e.Authorize(ctx, q, identity, resource, op, target)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return &DeniedError{Decision: decision}
	}
	return nil
}

func allow(reason string, role Role) Decision {
	return Decision{Allowed: true, Reason: reason, Role: role, CheckedAt: time.Now()}
}

func deny(reason string, role Role) Decision {
	return Decision{Allowed: false, Reason: reason, Role: role, CheckedAt: time.Now()}
}

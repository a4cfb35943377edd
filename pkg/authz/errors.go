package authz

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated indicates the caller identity has no stored profile.
	// A missing profile is never treated as a default role.
	ErrUnauthenticated = errors.New("unauthenticated: no profile for identity")

	// ErrDenied indicates a rule evaluated false. It is a normal negative
	// outcome, distinct from a missing target row.
	ErrDenied = errors.New("permission denied")

	// ErrNotFound indicates the target row is absent.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness violation, e.g. a duplicate
	// assignment for the same (project, user) pair.
	ErrConflict = errors.New("conflict")
)

// InvalidValueError indicates a value outside a closed enumeration, such as a
// fourth role or an unknown project status.
type InvalidValueError struct {
	Field string
	Value string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}

// IsInvalid checks if an error is an InvalidValueError
func IsInvalid(err error) bool {
	var ive *InvalidValueError
	return errors.As(err, &ive)
}

// DeniedError wraps ErrDenied with the decision that produced it so callers
// can log the reason without losing errors.Is matching.
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string {
	if e.Decision.Reason != "" {
		return "permission denied: " + e.Decision.Reason
	}
	return "permission denied"
}

func (e *DeniedError) Unwrap() error { return ErrDenied }

package authz

import (
	"context"
	"database/sql"
	"time"
)

// Role represents an account-wide role stored on a profile
type Role string

const (
	RoleAdmin       Role = "admin"        // Full access to every resource
	RoleProjectLead Role = "project_lead" // Manages the projects they lead
	RoleDeveloper   Role = "developer"    // Works on projects they are assigned to
)

// ValidRoles returns the closed set of roles accepted at rest and in checks
func ValidRoles() []Role {
	return []Role{RoleAdmin, RoleProjectLead, RoleDeveloper}
}

// IsValid reports whether the role is one of the three defined values
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleProjectLead, RoleDeveloper:
		return true
	}
	return false
}

// ProjectStatus represents the lifecycle state of a project
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
)

// IsValid reports whether the status is one of the defined values
func (s ProjectStatus) IsValid() bool {
	return s == ProjectActive || s == ProjectCompleted
}

// Resource represents a resource type subject to authorization
type Resource string

const (
	ResourceProfile    Resource = "profile"
	ResourceProject    Resource = "project"
	ResourceAssignment Resource = "assignment"
	ResourceDocument   Resource = "document"
	ResourceObject     Resource = "object" // Binary payload behind a document
)

// Operation represents an action performed on a resource
type Operation string

const (
	OperationRead   Operation = "read"
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Target carries the row attributes a rule may consult. Callers fill only the
// fields that apply to the resource being checked; the engine never reaches
// outside of it except through the relationship predicates.
type Target struct {
	// ProfileID is the target profile for profile operations.
	ProfileID string

	// ProjectID scopes project, assignment, and document operations.
	ProjectID int64

	// ProjectStatus is the status of the target project when the caller has
	// already loaded the row (project reads). Left empty otherwise.
	ProjectStatus ProjectStatus

	// AssignmentUserID is the user referenced by the assignment row being read.
	AssignmentUserID string

	// ObjectKey is the storage key for binary object operations.
	ObjectKey string
}

// Decision represents the outcome of evaluating a rule. A decision is binary:
// the operation either passes every clause of its rule or is denied outright.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	Role      Role      `json:"role,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx. The
// engine evaluates predicates through whatever querier the caller is using so
// that a check and the mutation it guards observe the same snapshot.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

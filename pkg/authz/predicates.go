package authz

import (
	"context"
	"database/sql"
	"fmt"
)

// The relationship predicates are pure boolean point lookups against the
// resource store. They read rows directly through the caller's querier and
// never re-enter the policy engine. A nonexistent project yields false, not an
// error: the enclosing rule decides what a missing target means.

// IsAssigned reports whether an assignment row exists for the exact
// (project, identity) pair.
func IsAssigned(ctx context.Context, q Querier, identity string, projectID int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM project_assignments WHERE project_id = $1 AND user_id = $2`,
		projectID, identity,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check assignment: %w", err)
	}
	return true, nil
}

// IsLead reports whether the project's lead reference equals identity
func IsLead(ctx context.Context, q Querier, identity string, projectID int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM projects WHERE id = $1 AND project_lead_id = $2`,
		projectID, identity,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check lead: %w", err)
	}
	return true, nil
}

// LeadsAnyProject reports whether identity is the lead of at least one
// project, regardless of which.
func LeadsAnyProject(ctx context.Context, q Querier, identity string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM projects WHERE project_lead_id = $1 LIMIT 1`,
		identity,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check led projects: %w", err)
	}
	return true, nil
}

// projectForObjectKey maps a binary object key back to the project of the
// document that owns it. The second return is false when no document
// references the key.
func projectForObjectKey(ctx context.Context, q Querier, key string) (int64, bool, error) {
	var projectID int64
	err := q.QueryRowContext(ctx,
		`SELECT project_id FROM project_documents WHERE file_path = $1`,
		key,
	).Scan(&projectID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to map object key to project: %w", err)
	}
	return projectID, true, nil
}

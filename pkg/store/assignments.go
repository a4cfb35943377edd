package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/crewdesk/crewdesk/pkg/authz"
)

// CreateAssignment adds a user to a project. Two concurrent inserts for the
// same (project, user) pair race on the unique constraint; the loser gets
// Conflict, never a silent overwrite.
func (s *Store) CreateAssignment(ctx context.Context, caller string, projectID int64, userID string) (*Assignment, error) {
	var assignment *Assignment
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := projectStatus(ctx, tx, projectID); err != nil {
			return err
		}

		if err := s.engine.Require(ctx, tx, caller, authz.ResourceAssignment, authz.OperationInsert,
			authz.Target{ProjectID: projectID, AssignmentUserID: userID}); err != nil {
			return err
		}

		assignment = &Assignment{
			ProjectID:  projectID,
			UserID:     userID,
			AssignedAt: time.Now(),
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO project_assignments (project_id, user_id, assigned_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (project_id, user_id) DO NOTHING
		`, projectID, userID, assignment.AssignedAt)
		if err != nil {
			return fmt.Errorf("failed to create assignment: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return authz.ErrConflict
		}

		return tx.QueryRowContext(ctx, `
			SELECT id FROM project_assignments WHERE project_id = $1 AND user_id = $2
		`, projectID, userID).Scan(&assignment.ID)
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// DeleteAssignment removes a user from a project
func (s *Store) DeleteAssignment(ctx context.Context, caller string, projectID int64, userID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := projectStatus(ctx, tx, projectID); err != nil {
			return err
		}

		if err := s.engine.Require(ctx, tx, caller, authz.ResourceAssignment, authz.OperationDelete,
			authz.Target{ProjectID: projectID, AssignmentUserID: userID}); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			DELETE FROM project_assignments WHERE project_id = $1 AND user_id = $2
		`, projectID, userID)
		if err != nil {
			return fmt.Errorf("failed to delete assignment: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return authz.ErrNotFound
		}
		return nil
	})
}

// ListProjectAssignments retrieves a project's assignments. Admins and the
// project's lead see all rows, everyone else only their own. The filter is
// the assignment read rule pushed into SQL.
func (s *Store) ListProjectAssignments(ctx context.Context, caller string, projectID int64) ([]*Assignment, error) {
	var assignments []*Assignment
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := projectStatus(ctx, tx, projectID); err != nil {
			return err
		}

		role, err := s.engine.Resolver().ResolveRole(ctx, tx, caller)
		if err != nil {
			return err
		}

		seeAll := role == authz.RoleAdmin
		if !seeAll {
			seeAll, err = authz.IsLead(ctx, tx, caller, projectID)
			if err != nil {
				return err
			}
		}

		query := `
			SELECT id, project_id, user_id, assigned_at
			FROM project_assignments WHERE project_id = $1
		`
		var rows *sql.Rows
		if seeAll {
			rows, err = tx.QueryContext(ctx, query+` ORDER BY assigned_at ASC`, projectID)
		} else {
			rows, err = tx.QueryContext(ctx, query+` AND user_id = $2 ORDER BY assigned_at ASC`, projectID, caller)
		}
		if err != nil {
			return fmt.Errorf("failed to list assignments: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			assignment := &Assignment{}
			if err := rows.Scan(&assignment.ID, &assignment.ProjectID,
				&assignment.UserID, &assignment.AssignedAt); err != nil {
				return fmt.Errorf("failed to scan assignment: %w", err)
			}
			assignments = append(assignments, assignment)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// ListUserAssignments retrieves the assignments of one user. A user sees
// their own; admins see anyone's; a lead sees the subset on projects they
// lead.
func (s *Store) ListUserAssignments(ctx context.Context, caller, userID string) ([]*Assignment, error) {
	var assignments []*Assignment
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		role, err := s.engine.Resolver().ResolveRole(ctx, tx, caller)
		if err != nil {
			return err
		}

		var rows *sql.Rows
		if userID == caller || role == authz.RoleAdmin {
			rows, err = tx.QueryContext(ctx, `
				SELECT id, project_id, user_id, assigned_at
				FROM project_assignments WHERE user_id = $1
				ORDER BY assigned_at ASC
			`, userID)
		} else {
			rows, err = tx.QueryContext(ctx, `
				SELECT a.id, a.project_id, a.user_id, a.assigned_at
				FROM project_assignments a
				JOIN projects p ON p.id = a.project_id
				WHERE a.user_id = $1 AND p.project_lead_id = $2
				ORDER BY a.assigned_at ASC
			`, userID, caller)
		}
		if err != nil {
			return fmt.Errorf("failed to list assignments: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			assignment := &Assignment{}
			if err := rows.Scan(&assignment.ID, &assignment.ProjectID,
				&assignment.UserID, &assignment.AssignedAt); err != nil {
				return fmt.Errorf("failed to scan assignment: %w", err)
			}
			assignments = append(assignments, assignment)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/crewdesk/crewdesk/pkg/authz"
)

// CreateProject inserts a project. Admin only; a lead reference must point at
// a profile holding the project_lead or admin role.
func (s *Store) CreateProject(ctx context.Context, caller string, project *Project) error {
	if project.Status == "" {
		project.Status = authz.ProjectActive
	}
	if !project.Status.IsValid() {
		return &authz.InvalidValueError{Field: "status", Value: string(project.Status)}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.engine.Require(ctx, tx, caller, authz.ResourceProject, authz.OperationInsert,
			authz.Target{}); err != nil {
			return err
		}

		if project.ProjectLeadID != nil {
			if err := checkLeadEligible(ctx, tx, *project.ProjectLeadID); err != nil {
				return err
			}
		}

		now := time.Now()
		project.CreatedAt = now
		project.UpdatedAt = now
		project.CreatedBy = caller

		err := tx.QueryRowContext(ctx, `
			INSERT INTO projects (name, description, deadline, status, created_by, project_lead_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`, project.Name, project.Description, project.Deadline, string(project.Status),
			project.CreatedBy, project.ProjectLeadID, project.CreatedAt, project.UpdatedAt,
		).Scan(&project.ID)
		if err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}
		return nil
	})
}

// checkLeadEligible verifies a prospective lead holds a leading role
func checkLeadEligible(ctx context.Context, q authz.Querier, leadID string) error {
	var role authz.Role
	err := q.QueryRowContext(ctx, `SELECT role FROM profiles WHERE id = $1`, leadID).Scan(&role)
	if err == sql.ErrNoRows {
		return authz.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check lead role: %w", err)
	}
	if role != authz.RoleProjectLead && role != authz.RoleAdmin {
		return &authz.InvalidValueError{Field: "project_lead_id", Value: leadID}
	}
	return nil
}

// GetProject retrieves a project. The row is loaded first so a missing
// project reports NotFound rather than a deny, then its status feeds the read
// rule.
func (s *Store) GetProject(ctx context.Context, caller string, id int64) (*Project, error) {
	var project *Project
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		loaded, err := scanProject(tx.QueryRowContext(ctx, `
			SELECT id, name, description, deadline, status, created_by, project_lead_id, created_at, updated_at
			FROM projects WHERE id = $1
		`, id))
		if err == sql.ErrNoRows {
			return authz.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get project: %w", err)
		}

		if err := s.engine.Require(ctx, tx, caller, authz.ResourceProject, authz.OperationRead,
			authz.Target{ProjectID: loaded.ID, ProjectStatus: loaded.Status}); err != nil {
			return err
		}
		project = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjects retrieves the projects visible to the caller: everything for
// admins, active projects plus the ones they lead for everyone else. The
// filter is the project read rule pushed into SQL.
func (s *Store) ListProjects(ctx context.Context, caller string) ([]*Project, error) {
	var projects []*Project
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		role, err := s.engine.Resolver().ResolveRole(ctx, tx, caller)
		if err != nil {
			return err
		}

		query := `
			SELECT id, name, description, deadline, status, created_by, project_lead_id, created_at, updated_at
			FROM projects
		`
		var rows *sql.Rows
		if role == authz.RoleAdmin {
			rows, err = tx.QueryContext(ctx, query+` ORDER BY created_at DESC`)
		} else {
			rows, err = tx.QueryContext(ctx,
				query+` WHERE status = 'active' OR project_lead_id = $1 ORDER BY created_at DESC`, caller)
		}
		if err != nil {
			return fmt.Errorf("failed to list projects: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			project, err := scanProjectRows(rows)
			if err != nil {
				return err
			}
			projects = append(projects, project)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// UpdateProject updates a project's mutable fields. Admin only.
func (s *Store) UpdateProject(ctx context.Context, caller string, project *Project) error {
	if !project.Status.IsValid() {
		return &authz.InvalidValueError{Field: "status", Value: string(project.Status)}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := projectStatus(ctx, tx, project.ID); err != nil {
			return err
		}

		if err := s.engine.Require(ctx, tx, caller, authz.ResourceProject, authz.OperationUpdate,
			authz.Target{ProjectID: project.ID}); err != nil {
			return err
		}

		if project.ProjectLeadID != nil {
			if err := checkLeadEligible(ctx, tx, *project.ProjectLeadID); err != nil {
				return err
			}
		}

		project.UpdatedAt = time.Now()
		_, err := tx.ExecContext(ctx, `
			UPDATE projects
			SET name = $1, description = $2, deadline = $3, status = $4, project_lead_id = $5, updated_at = $6
			WHERE id = $7
		`, project.Name, project.Description, project.Deadline, string(project.Status),
			project.ProjectLeadID, project.UpdatedAt, project.ID)
		if err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}
		return nil
	})
}

// DeleteProject removes a project. Assignments and documents cascade with it.
func (s *Store) DeleteProject(ctx context.Context, caller string, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := projectStatus(ctx, tx, id); err != nil {
			return err
		}

		if err := s.engine.Require(ctx, tx, caller, authz.ResourceProject, authz.OperationDelete,
			authz.Target{ProjectID: id}); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		return nil
	})
}

func scanProject(row *sql.Row) (*Project, error) {
	project := &Project{}
	err := row.Scan(&project.ID, &project.Name, &project.Description, &project.Deadline,
		&project.Status, &project.CreatedBy, &project.ProjectLeadID,
		&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return project, nil
}

func scanProjectRows(rows *sql.Rows) (*Project, error) {
	project := &Project{}
	err := rows.Scan(&project.ID, &project.Name, &project.Description, &project.Deadline,
		&project.Status, &project.CreatedBy, &project.ProjectLeadID,
		&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	return project, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/crewdesk/crewdesk/pkg/authz"
)

// CreateProfile inserts a profile through the admin-gated path. Signup
// provisioning uses ProvisionProfile instead.
func (s *Store) CreateProfile(ctx context.Context, caller string, profile *Profile) error {
	if profile.Role == "" {
		profile.Role = authz.RoleDeveloper
	}
	if !profile.Role.IsValid() {
		return &authz.InvalidValueError{Field: "role", Value: string(profile.Role)}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.engine.Require(ctx, tx, caller, authz.ResourceProfile, authz.OperationInsert,
			authz.Target{ProfileID: profile.ID}); err != nil {
			return err
		}
		return insertProfile(ctx, tx, profile)
	})
}

// ProvisionProfile inserts the default profile for a brand-new identity. It
// runs on the caller's querier so identity creation and profile creation
// commit together, and it bypasses the policy engine: at signup time the
// identity has no profile yet, so no rule could ever admit it.
func (s *Store) ProvisionProfile(ctx context.Context, q authz.Querier, profile *Profile) error {
	if profile.Role == "" {
		profile.Role = authz.RoleDeveloper
	}
	if !profile.Role.IsValid() {
		return &authz.InvalidValueError{Field: "role", Value: string(profile.Role)}
	}
	return insertProfile(ctx, q, profile)
}

func insertProfile(ctx context.Context, q authz.Querier, profile *Profile) error {
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	result, err := q.ExecContext(ctx, `
		INSERT INTO profiles (id, email, full_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, profile.ID, profile.Email, profile.FullName, string(profile.Role), profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return authz.ErrConflict
	}
	return nil
}

// GetProfile retrieves a profile by identity
func (s *Store) GetProfile(ctx context.Context, caller, id string) (*Profile, error) {
	var profile *Profile
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.engine.Require(ctx, tx, caller, authz.ResourceProfile, authz.OperationRead,
			authz.Target{ProfileID: id}); err != nil {
			return err
		}

		profile = &Profile{}
		err := tx.QueryRowContext(ctx, `
			SELECT id, email, full_name, role, created_at, updated_at
			FROM profiles WHERE id = $1
		`, id).Scan(&profile.ID, &profile.Email, &profile.FullName, &profile.Role,
			&profile.CreatedAt, &profile.UpdatedAt)
		if err == sql.ErrNoRows {
			return authz.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// ListProfiles retrieves all profiles
func (s *Store) ListProfiles(ctx context.Context, caller string) ([]*Profile, error) {
	var profiles []*Profile
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.engine.Require(ctx, tx, caller, authz.ResourceProfile, authz.OperationRead,
			authz.Target{}); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id, email, full_name, role, created_at, updated_at
			FROM profiles ORDER BY created_at ASC
		`)
		if err != nil {
			return fmt.Errorf("failed to list profiles: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			profile := &Profile{}
			if err := rows.Scan(&profile.ID, &profile.Email, &profile.FullName, &profile.Role,
				&profile.CreatedAt, &profile.UpdatedAt); err != nil {
				return fmt.Errorf("failed to scan profile: %w", err)
			}
			profiles = append(profiles, profile)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// UpdateProfile updates the caller-editable fields of a profile. Role changes
// go through UpdateProfileRole.
func (s *Store) UpdateProfile(ctx context.Context, caller, id, email, fullName string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.engine.Require(ctx, tx, caller, authz.ResourceProfile, authz.OperationUpdate,
			authz.Target{ProfileID: id}); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE profiles SET email = $1, full_name = $2, updated_at = $3 WHERE id = $4
		`, email, fullName, time.Now(), id)
		if err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
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

// UpdateProfileRole changes a profile's role. Only admins may call it; the
// cached role for the target is dropped so the next decision sees the change.
func (s *Store) UpdateProfileRole(ctx context.Context, caller, id string, role authz.Role) error {
	if !role.IsValid() {
		return &authz.InvalidValueError{Field: "role", Value: string(role)}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		callerRole, err := s.engine.Resolver().ResolveRole(ctx, tx, caller)
		if err != nil {
			return err
		}
		if callerRole != authz.RoleAdmin {
			return &authz.DeniedError{Decision: authz.Decision{
				Reason: "role changes require admin",
				Role:   callerRole,
			}}
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE profiles SET role = $1, updated_at = $2 WHERE id = $3
		`, string(role), time.Now(), id)
		if err != nil {
			return fmt.Errorf("failed to update role: %w", err)
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
	if err != nil {
		return err
	}

	s.engine.Resolver().Invalidate(ctx, id)
	return nil
}

// DeleteProfile removes a profile and, through the schema's cascades, its
// assignments. Admin only. A profile still referenced as a project creator or
// document uploader cannot be deleted; those rows must be removed or
// reassigned first, and the attempt fails with Conflict.
func (s *Store) DeleteProfile(ctx context.Context, caller, id string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		callerRole, err := s.engine.Resolver().ResolveRole(ctx, tx, caller)
		if err != nil {
			return err
		}
		if callerRole != authz.RoleAdmin {
			return &authz.DeniedError{Decision: authz.Decision{
				Reason: "profile delete requires admin",
				Role:   callerRole,
			}}
		}

		// created_by and uploaded_by carry no ON DELETE action, so a delete
		// while referenced would fail on the constraint. Check first and
		// surface it as a Conflict the caller can act on.
		var one int
		err = tx.QueryRowContext(ctx, `
			SELECT 1 FROM projects WHERE created_by = $1
			UNION ALL
			SELECT 1 FROM project_documents WHERE uploaded_by = $1
			LIMIT 1
		`, id).Scan(&one)
		if err == nil {
			return fmt.Errorf("profile still referenced by projects or documents: %w", authz.ErrConflict)
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check profile references: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete profile: %w", err)
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
	if err != nil {
		return err
	}

	s.engine.Resolver().Invalidate(ctx, id)
	return nil
}

// Package identity handles who a caller is: signup provisioning, API tokens,
// and OIDC login. Authorization of what a caller may do lives in pkg/authz.
package identity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crewdesk/crewdesk/pkg/authz"
	"github.com/crewdesk/crewdesk/pkg/store"
)

// Provisioner creates identities together with their default profile. The
// two inserts run in one transaction: a registered identity always has
// exactly one profile, and a failed profile insert rolls the identity back.
type Provisioner struct {
	db    *sql.DB
	store *store.Store
}

// NewProvisioner creates a signup provisioner
func NewProvisioner(db *sql.DB, s *store.Store) *Provisioner {
	return &Provisioner{db: db, store: s}
}

// SignUp registers a new identity and provisions its developer profile. A
// reused email fails with Conflict and leaves nothing behind.
func (p *Provisioner) SignUp(ctx context.Context, email, fullName string) (*store.Profile, error) {
	return p.provision(ctx, email, fullName, "")
}

// EnsureIdentity resolves an external login (OIDC subject plus claims) to a
// local identity, provisioning one on first contact. Repeat logins return the
// existing identity's profile.
func (p *Provisioner) EnsureIdentity(ctx context.Context, user *ExternalUser) (*store.Profile, error) {
	var id string
	err := p.db.QueryRowContext(ctx,
		`SELECT id FROM identities WHERE email = $1`, user.Email).Scan(&id)
	if err == nil {
		return p.store.GetProfile(ctx, id, id)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	return p.provision(ctx, user.Email, user.FullName, user.Subject)
}

func (p *Provisioner) provision(ctx context.Context, email, fullName, externalSubject string) (*store.Profile, error) {
	if email == "" {
		return nil, &authz.InvalidValueError{Field: "email", Value: email}
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New().String()

	var subject *string
	if externalSubject != "" {
		subject = &externalSubject
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO identities (id, email, external_subject, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
	`, id, email, subject, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, authz.ErrConflict
	}

	profile := &store.Profile{
		ID:       id,
		Email:    email,
		FullName: fullName,
		Role:     authz.RoleDeveloper,
	}
	if err := p.store.ProvisionProfile(ctx, tx, profile); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit signup: %w", err)
	}
	return profile, nil
}

// DeleteIdentity removes an identity; profiles, assignments, and tokens
// cascade with it. Admin only.
func (p *Provisioner) DeleteIdentity(ctx context.Context, caller, id string) error {
	if err := p.store.DeleteProfile(ctx, caller, id); err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	return nil
}

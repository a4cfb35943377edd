package identity

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/crewdesk/crewdesk/pkg/authz"
	"github.com/crewdesk/crewdesk/pkg/store"
)

func setupProvisioner(t *testing.T) (*Provisioner, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE identities (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			external_subject TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE profiles (
			id TEXT PRIMARY KEY REFERENCES identities(id) ON DELETE CASCADE,
			email TEXT NOT NULL,
			full_name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'developer',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT,
			deadline TIMESTAMP,
			status TEXT NOT NULL DEFAULT 'active',
			created_by TEXT NOT NULL,
			project_lead_id TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE project_assignments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			user_id TEXT NOT NULL,
			assigned_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(project_id, user_id)
		);

		CREATE TABLE project_documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			file_name TEXT NOT NULL,
			file_path TEXT NOT NULL UNIQUE,
			file_size INTEGER,
			uploaded_by TEXT NOT NULL,
			uploaded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	engine := authz.NewEngine(authz.NewResolver(0))
	return NewProvisioner(db, store.NewStore(db, engine)), db
}

func TestSignUpProvisionsDefaultProfile(t *testing.T) {
	p, db := setupProvisioner(t)
	ctx := context.Background()

	profile, err := p.SignUp(ctx, "new@example.com", "New User")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if profile.Role != authz.RoleDeveloper {
		t.Errorf("Expected developer default role, got %s", profile.Role)
	}
	if profile.ID == "" {
		t.Error("Expected generated identity id")
	}

	// Identity and profile share one id and committed together
	var identityCount, profileCount int
	db.QueryRow(`SELECT COUNT(*) FROM identities WHERE id = $1`, profile.ID).Scan(&identityCount)
	db.QueryRow(`SELECT COUNT(*) FROM profiles WHERE id = $1`, profile.ID).Scan(&profileCount)
	if identityCount != 1 || profileCount != 1 {
		t.Errorf("Expected 1 identity and 1 profile, got %d and %d", identityCount, profileCount)
	}
}

func TestSignUpDuplicateEmailConflicts(t *testing.T) {
	p, db := setupProvisioner(t)
	ctx := context.Background()

	if _, err := p.SignUp(ctx, "dup@example.com", "First"); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	_, err := p.SignUp(ctx, "dup@example.com", "Second")
	if !errors.Is(err, authz.ErrConflict) {
		t.Errorf("Expected Conflict, got %v", err)
	}

	// The losing signup left nothing behind
	var count int
	db.QueryRow(`SELECT COUNT(*) FROM identities`).Scan(&count)
	if count != 1 {
		t.Errorf("Expected 1 identity after conflicting signup, got %d", count)
	}

	_, err = p.SignUp(ctx, "", "Nameless")
	var invalid *authz.InvalidValueError
	if !errors.As(err, &invalid) {
		t.Errorf("Expected InvalidValueError for empty email, got %v", err)
	}
}

func TestEnsureIdentityIsIdempotent(t *testing.T) {
	p, _ := setupProvisioner(t)
	ctx := context.Background()

	external := &ExternalUser{Subject: "sub-123", Email: "sso@example.com", FullName: "SSO User"}

	first, err := p.EnsureIdentity(ctx, external)
	if err != nil {
		t.Fatalf("EnsureIdentity failed: %v", err)
	}

	second, err := p.EnsureIdentity(ctx, external)
	if err != nil {
		t.Fatalf("Repeat EnsureIdentity failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("Expected same identity across logins, got %s and %s", first.ID, second.ID)
	}
}

func TestDeleteIdentityCascades(t *testing.T) {
	p, db := setupProvisioner(t)
	ctx := context.Background()

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	admin, err := p.SignUp(ctx, "admin@example.com", "Admin")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if _, err := db.Exec(`UPDATE profiles SET role = 'admin' WHERE id = $1`, admin.ID); err != nil {
		t.Fatalf("Failed to promote admin: %v", err)
	}

	victim, err := p.SignUp(ctx, "victim@example.com", "Victim")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	// Non-admin cannot remove identities
	err = p.DeleteIdentity(ctx, victim.ID, admin.ID)
	if !errors.Is(err, authz.ErrDenied) {
		t.Errorf("Expected Denied, got %v", err)
	}

	if err := p.DeleteIdentity(ctx, admin.ID, victim.ID); err != nil {
		t.Fatalf("DeleteIdentity failed: %v", err)
	}
	var count int
	db.QueryRow(`SELECT COUNT(*) FROM profiles WHERE id = $1`, victim.ID).Scan(&count)
	if count != 0 {
		t.Error("Expected profile removed with its identity")
	}
}

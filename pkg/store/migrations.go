package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all resource store migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create profiles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS profiles (
					id TEXT PRIMARY KEY,
					email VARCHAR(255) NOT NULL,
					full_name VARCHAR(255) NOT NULL,
					role VARCHAR(50) NOT NULL DEFAULT 'developer'
						CHECK (role IN ('admin', 'project_lead', 'developer')),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_profiles_role ON profiles(role);
			`,
		},
		{
			Version:     2,
			Description: "Create projects table",
			SQL: `
				CREATE TABLE IF NOT EXISTS projects (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					deadline TIMESTAMP,
					status VARCHAR(50) NOT NULL DEFAULT 'active'
						CHECK (status IN ('active', 'completed')),
					created_by TEXT NOT NULL REFERENCES profiles(id),
					project_lead_id TEXT REFERENCES profiles(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_projects_status ON projects(status);
				CREATE INDEX idx_projects_project_lead_id ON projects(project_lead_id);
			`,
		},
		{
			Version:     3,
			Description: "Create project_assignments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS project_assignments (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
					assigned_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(project_id, user_id)
				);

				CREATE INDEX idx_project_assignments_project_id ON project_assignments(project_id);
				CREATE INDEX idx_project_assignments_user_id ON project_assignments(user_id);
			`,
		},
		{
			Version:     4,
			Description: "Create project_documents table",
			SQL: `
				CREATE TABLE IF NOT EXISTS project_documents (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					file_name VARCHAR(255) NOT NULL,
					file_path TEXT NOT NULL UNIQUE,
					file_size BIGINT,
					uploaded_by TEXT NOT NULL REFERENCES profiles(id),
					uploaded_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_project_documents_project_id ON project_documents(project_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	// Create migration tracking table
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS store_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get applied migrations
	rows, err := db.QueryContext(ctx, "SELECT version FROM store_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	// Run pending migrations
	migrations := GetMigrations()
	for _, migration := range migrations {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO store_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

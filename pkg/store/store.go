// Package store is the transactional resource store behind the policy
// engine. Every read and write path loads the target row, asks the engine for
// a decision, and executes the operation on the same transaction, so the
// predicate reads and the final statement observe one snapshot.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crewdesk/crewdesk/pkg/authz"
)

// Store wraps the relational database with policy-gated access paths
type Store struct {
	db     *sql.DB
	engine *authz.Engine
}

// NewStore creates a resource store gated by the given engine
func NewStore(db *sql.DB, engine *authz.Engine) *Store {
	return &Store{db: db, engine: engine}
}

// Engine returns the policy engine the store consults
func (s *Store) Engine() *authz.Engine {
	return s.engine
}

// DB exposes the underlying handle for health checks and migrations
func (s *Store) DB() *sql.DB {
	return s.db
}

// withTx runs fn inside a transaction, committing on nil and rolling back
// otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// projectExists loads the status of a project, distinguishing a missing row
// from a denied one before any rule runs.
func projectStatus(ctx context.Context, q authz.Querier, projectID int64) (authz.ProjectStatus, error) {
	var status authz.ProjectStatus
	err := q.QueryRowContext(ctx, `SELECT status FROM projects WHERE id = $1`, projectID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", authz.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load project status: %w", err)
	}
	return status, nil
}

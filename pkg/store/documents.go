package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/crewdesk/crewdesk/pkg/authz"
)

// CreateDocument inserts a document metadata row. The file_path key is unique
// across all projects; a duplicate upload keyed the same way reports Conflict.
func (s *Store) CreateDocument(ctx context.Context, caller string, doc *Document) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := projectStatus(ctx, tx, doc.ProjectID); err != nil {
			return err
		}

		if err := s.engine.Require(ctx, tx, caller, authz.ResourceDocument, authz.OperationInsert,
			authz.Target{ProjectID: doc.ProjectID}); err != nil {
			return err
		}

		doc.UploadedBy = caller
		doc.UploadedAt = time.Now()

		result, err := tx.ExecContext(ctx, `
			INSERT INTO project_documents (project_id, file_name, file_path, file_size, uploaded_by, uploaded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (file_path) DO NOTHING
		`, doc.ProjectID, doc.FileName, doc.FilePath, doc.FileSize, doc.UploadedBy, doc.UploadedAt)
		if err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return authz.ErrConflict
		}

		return tx.QueryRowContext(ctx,
			`SELECT id FROM project_documents WHERE file_path = $1`, doc.FilePath,
		).Scan(&doc.ID)
	})
}

// GetDocument retrieves a document metadata row by id
func (s *Store) GetDocument(ctx context.Context, caller string, id int64) (*Document, error) {
	var doc *Document
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		loaded, err := scanDocument(tx.QueryRowContext(ctx, `
			SELECT id, project_id, file_name, file_path, file_size, uploaded_by, uploaded_at
			FROM project_documents WHERE id = $1
		`, id))
		if err == sql.ErrNoRows {
			return authz.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get document: %w", err)
		}

		if err := s.engine.Require(ctx, tx, caller, authz.ResourceDocument, authz.OperationRead,
			authz.Target{ProjectID: loaded.ProjectID}); err != nil {
			return err
		}
		doc = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocumentByKey retrieves the document owning an object storage key and
// authorizes the caller to read the binary payload behind it. The object
// gateway calls this before streaming a download.
func (s *Store) GetDocumentByKey(ctx context.Context, caller, key string) (*Document, error) {
	var doc *Document
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		loaded, err := scanDocument(tx.QueryRowContext(ctx, `
			SELECT id, project_id, file_name, file_path, file_size, uploaded_by, uploaded_at
			FROM project_documents WHERE file_path = $1
		`, key))
		if err == sql.ErrNoRows {
			return authz.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get document: %w", err)
		}

		if err := s.engine.Require(ctx, tx, caller, authz.ResourceObject, authz.OperationRead,
			authz.Target{ProjectID: loaded.ProjectID, ObjectKey: key}); err != nil {
			return err
		}
		doc = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// AuthorizeObjectUpload runs the binary object insert rule for the caller.
// Callers check this before writing to the storage backend; CreateDocument
// then records the metadata row.
func (s *Store) AuthorizeObjectUpload(ctx context.Context, caller string, projectID int64, key string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := projectStatus(ctx, tx, projectID); err != nil {
			return err
		}
		return s.engine.Require(ctx, tx, caller, authz.ResourceObject, authz.OperationInsert,
			authz.Target{ProjectID: projectID, ObjectKey: key})
	})
}

// ListProjectDocuments retrieves all document metadata for a project
func (s *Store) ListProjectDocuments(ctx context.Context, caller string, projectID int64) ([]*Document, error) {
	var documents []*Document
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := projectStatus(ctx, tx, projectID); err != nil {
			return err
		}

		if err := s.engine.Require(ctx, tx, caller, authz.ResourceDocument, authz.OperationRead,
			authz.Target{ProjectID: projectID}); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id, project_id, file_name, file_path, file_size, uploaded_by, uploaded_at
			FROM project_documents WHERE project_id = $1
			ORDER BY uploaded_at DESC
		`, projectID)
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			doc := &Document{}
			if err := rows.Scan(&doc.ID, &doc.ProjectID, &doc.FileName, &doc.FilePath,
				&doc.FileSize, &doc.UploadedBy, &doc.UploadedAt); err != nil {
				return fmt.Errorf("failed to scan document: %w", err)
			}
			documents = append(documents, doc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return documents, nil
}

func scanDocument(row *sql.Row) (*Document, error) {
	doc := &Document{}
	err := row.Scan(&doc.ID, &doc.ProjectID, &doc.FileName, &doc.FilePath,
		&doc.FileSize, &doc.UploadedBy, &doc.UploadedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

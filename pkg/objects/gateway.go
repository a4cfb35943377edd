package objects

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"

	"github.com/crewdesk/crewdesk/pkg/store"
)

// Gateway couples the blob backend to the resource store: every upload and
// download is authorized first, and each stored blob is reachable through
// exactly one document metadata row.
type Gateway struct {
	store   *store.Store
	backend Backend
}

// NewGateway creates an object gateway
func NewGateway(s *store.Store, backend Backend) *Gateway {
	return &Gateway{store: s, backend: backend}
}

// Backend returns the underlying blob backend
func (g *Gateway) Backend() Backend {
	return g.backend
}

// ObjectKey builds the storage key for a new upload. Keys are namespaced per
// project and carry a random component so concurrent uploads of the same file
// name never collide.
func ObjectKey(projectID int64, fileName string) string {
	return fmt.Sprintf("projects/%d/%s-%s", projectID, uuid.New().String(), path.Base(fileName))
}

// Upload authorizes the caller, writes the blob, and records its document
// metadata row. If the metadata insert fails, the written blob is removed
// again so no orphan key survives.
func (g *Gateway) Upload(ctx context.Context, caller string, projectID int64, fileName, contentType string, content io.Reader) (*store.Document, error) {
	key := ObjectKey(projectID, fileName)

	if err := g.store.AuthorizeObjectUpload(ctx, caller, projectID, key); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	if err := g.backend.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return nil, err
	}

	size := int64(len(data))
	doc := &store.Document{
		ProjectID: projectID,
		FileName:  path.Base(fileName),
		FilePath:  key,
		FileSize:  &size,
	}
	if err := g.store.CreateDocument(ctx, caller, doc); err != nil {
		// Best effort: the key is random, so a stale blob would never be
		// referenced, but clean it up anyway.
		_ = g.backend.Delete(ctx, key)
		return nil, err
	}

	return doc, nil
}

// Download authorizes the caller against the document owning the key and
// streams the blob. The caller closes the reader.
func (g *Gateway) Download(ctx context.Context, caller, key string) (io.ReadCloser, *store.Document, error) {
	doc, err := g.store.GetDocumentByKey(ctx, caller, key)
	if err != nil {
		return nil, nil, err
	}

	body, err := g.backend.Get(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return body, doc, nil
}

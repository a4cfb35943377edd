package objects

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/crewdesk/crewdesk/pkg/authz"
	"github.com/crewdesk/crewdesk/pkg/store"
)

// fakeBackend is an in-memory Backend for gateway tests
type fakeBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	deletes int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{objects: make(map[string][]byte)}
}

func (f *fakeBackend) Put(ctx context.Context, key string, content io.Reader, contentType string) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.puts++
	return nil
}

func (f *fakeBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBackend) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeBackend) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deletes++
	return nil
}

func (f *fakeBackend) HealthCheck(ctx context.Context) error { return nil }

func setupGateway(t *testing.T) (*Gateway, *store.Store, *fakeBackend) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE profiles (
			id TEXT PRIMARY KEY,
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
			created_by TEXT NOT NULL REFERENCES profiles(id),
			project_lead_id TEXT REFERENCES profiles(id),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE project_assignments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			assigned_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(project_id, user_id)
		);

		CREATE TABLE project_documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			file_name TEXT NOT NULL,
			file_path TEXT NOT NULL UNIQUE,
			file_size INTEGER,
			uploaded_by TEXT NOT NULL REFERENCES profiles(id),
			uploaded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	engine := authz.NewEngine(authz.NewResolver(0))
	s := store.NewStore(db, engine)
	backend := newFakeBackend()
	return NewGateway(s, backend), s, backend
}

func provision(t *testing.T, s *store.Store, id string, role authz.Role) {
	t.Helper()
	err := s.ProvisionProfile(context.Background(), s.DB(), &store.Profile{
		ID:       id,
		Email:    id + "@example.com",
		FullName: "Test " + id,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("Failed to provision profile %s: %v", id, err)
	}
}

func TestGatewayUploadAndDownload(t *testing.T) {
	g, s, backend := setupGateway(t)
	ctx := context.Background()

	provision(t, s, "admin-1", authz.RoleAdmin)
	provision(t, s, "lead-1", authz.RoleProjectLead)
	provision(t, s, "dev-1", authz.RoleDeveloper)

	lead := "lead-1"
	project := &store.Project{Name: "rollout", ProjectLeadID: &lead}
	if err := s.CreateProject(ctx, "admin-1", project); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if _, err := s.CreateAssignment(ctx, "lead-1", project.ID, "dev-1"); err != nil {
		t.Fatalf("CreateAssignment failed: %v", err)
	}

	doc, err := g.Upload(ctx, "lead-1", project.ID, "spec.pdf", "application/pdf",
		strings.NewReader("payload-bytes"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if doc.FileSize == nil || *doc.FileSize != int64(len("payload-bytes")) {
		t.Error("Expected file size recorded on the document")
	}
	if ok, _ := backend.Exists(ctx, doc.FilePath); !ok {
		t.Error("Expected blob stored under the document key")
	}

	// Assigned developer downloads through the key
	body, got, err := g.Download(ctx, "dev-1", doc.FilePath)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "payload-bytes" {
		t.Errorf("Expected payload round trip, got %q", data)
	}
	if got.ID != doc.ID {
		t.Errorf("Expected document %d, got %d", doc.ID, got.ID)
	}
}

func TestGatewayDeniesUnauthorizedTransfers(t *testing.T) {
	g, s, backend := setupGateway(t)
	ctx := context.Background()

	provision(t, s, "admin-1", authz.RoleAdmin)
	provision(t, s, "lead-1", authz.RoleProjectLead)
	provision(t, s, "dev-1", authz.RoleDeveloper)
	provision(t, s, "dev-2", authz.RoleDeveloper)

	lead := "lead-1"
	project := &store.Project{Name: "rollout", ProjectLeadID: &lead}
	if err := s.CreateProject(ctx, "admin-1", project); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	// Developers lead nothing, so the upload rule denies before any blob write
	_, err := g.Upload(ctx, "dev-1", project.ID, "x.bin", "application/octet-stream",
		strings.NewReader("x"))
	if !errors.Is(err, authz.ErrDenied) {
		t.Errorf("Expected Denied, got %v", err)
	}
	if backend.puts != 0 {
		t.Error("Expected no blob written on a denied upload")
	}

	doc, err := g.Upload(ctx, "lead-1", project.ID, "spec.pdf", "application/pdf",
		strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	// Unassigned developer cannot download
	_, _, err = g.Download(ctx, "dev-2", doc.FilePath)
	if !errors.Is(err, authz.ErrDenied) {
		t.Errorf("Expected Denied, got %v", err)
	}

	// A key without a document row is NotFound
	_, _, err = g.Download(ctx, "dev-2", "projects/1/unknown")
	if !errors.Is(err, authz.ErrNotFound) {
		t.Errorf("Expected NotFound, got %v", err)
	}

	// Missing project denies the upload with NotFound before the rule runs
	_, err = g.Upload(ctx, "lead-1", 9999, "y.bin", "application/octet-stream",
		strings.NewReader("y"))
	if !errors.Is(err, authz.ErrNotFound) {
		t.Errorf("Expected NotFound, got %v", err)
	}
}

func TestObjectKeyUniqueness(t *testing.T) {
	a := ObjectKey(7, "spec.pdf")
	b := ObjectKey(7, "spec.pdf")
	if a == b {
		t.Error("Expected distinct keys for repeated uploads of one file name")
	}
	if !strings.HasPrefix(a, "projects/7/") {
		t.Errorf("Expected project-scoped key, got %s", a)
	}
	// Path components in the file name must not escape the namespace
	c := ObjectKey(7, "../../etc/passwd")
	if !strings.HasPrefix(c, "projects/7/") || strings.Contains(c, "..") {
		t.Errorf("Expected sanitized key, got %s", c)
	}
}

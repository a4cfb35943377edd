package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/crewdesk/crewdesk/pkg/contextkeys"
	"github.com/crewdesk/crewdesk/pkg/identity"
)

func setupTokenManager(t *testing.T) *identity.TokenManager {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE api_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			token_prefix TEXT NOT NULL,
			name TEXT NOT NULL,
			expires_at TIMESTAMP,
			last_used_at TIMESTAMP,
			revoked_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return identity.NewTokenManager(db)
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	tm := setupTokenManager(t)
	mw := NewAuthMiddleware(tm, false)
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != `{"error":"missing authorization header"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestAuthMiddlewareOptionalAllowsAnonymous(t *testing.T) {
	tm := setupTokenManager(t)
	mw := NewAuthMiddleware(tm, true)

	var sawIdentity string
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawIdentity = GetIdentity(r)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/signup", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if sawIdentity != "" {
		t.Errorf("expected empty identity, got %q", sawIdentity)
	}
}

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	tm := setupTokenManager(t)
	mw := NewAuthMiddleware(tm, false)
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	for _, header := range []string{"token123", "Basic dXNlcjpwYXNz", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status 401, got %d", header, rec.Code)
		}
	}
}

func TestAuthMiddlewareResolvesValidToken(t *testing.T) {
	tm := setupTokenManager(t)
	_, token, err := tm.CreateToken(context.Background(), "user-lead", "ci token", nil)
	if err != nil {
		t.Fatalf("failed to create token: %v", err)
	}

	mw := NewAuthMiddleware(tm, false)
	var sawIdentity string
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawIdentity = GetIdentity(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if sawIdentity != "user-lead" {
		t.Errorf("expected identity user-lead, got %q", sawIdentity)
	}
}

func TestAuthMiddlewareRejectsRevokedToken(t *testing.T) {
	tm := setupTokenManager(t)
	apiToken, token, err := tm.CreateToken(context.Background(), "user-dev", "laptop", nil)
	if err != nil {
		t.Fatalf("failed to create token: %v", err)
	}
	if err := tm.RevokeToken(context.Background(), "user-dev", apiToken.ID); err != nil {
		t.Fatalf("failed to revoke token: %v", err)
	}

	mw := NewAuthMiddleware(tm, false)
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != `{"error":"invalid or expired token"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	tm := setupTokenManager(t)
	expired := time.Now().Add(-time.Hour)
	_, token, err := tm.CreateToken(context.Background(), "user-dev", "old", &expired)
	if err != nil {
		t.Fatalf("failed to create token: %v", err)
	}

	mw := NewAuthMiddleware(tm, false)
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestGetIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetIdentity(req); got != "" {
		t.Errorf("expected empty identity, got %q", got)
	}

	ctx := contextkeys.WithIdentity(context.Background(), "user-admin")
	req = req.WithContext(ctx)
	if got := GetIdentity(req); got != "user-admin" {
		t.Errorf("expected user-admin, got %q", got)
	}
}

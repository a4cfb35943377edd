package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func TestParseJSONOrError(t *testing.T) {
	t.Run("valid JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"alpha"}`))
		rec := httptest.NewRecorder()

		var dest struct {
			Name string `json:"name"`
		}
		if !ParseJSONOrError(rec, req, &dest) {
			t.Fatal("expected parse to succeed")
		}
		if dest.Name != "alpha" {
			t.Errorf("unexpected name: %s", dest.Name)
		}
	})

	t.Run("invalid JSON writes 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
		rec := httptest.NewRecorder()

		var dest struct{}
		if ParseJSONOrError(rec, req, &dest) {
			t.Fatal("expected parse to fail")
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestParsePathInt64(t *testing.T) {
	router := mux.NewRouter()
	var got int64
	var gotErr error
	router.HandleFunc("/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = ParsePathInt64(r, "id")
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/projects/42", nil))
	if gotErr != nil {
		t.Fatalf("unexpected error: %v", gotErr)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/projects/abc", nil))
	if gotErr == nil {
		t.Error("expected error for non-integer id")
	}
}

func TestRequireNonEmpty(t *testing.T) {
	rec := httptest.NewRecorder()
	if RequireNonEmpty(rec, "", "email") {
		t.Error("expected empty value to fail")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	if !RequireNonEmpty(rec, "dev@example.com", "email") {
		t.Error("expected non-empty value to pass")
	}
}

package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/crewdesk/crewdesk/pkg/audit"
	"github.com/crewdesk/crewdesk/pkg/httputil"
	"github.com/crewdesk/crewdesk/pkg/middleware"
)

// uploadDocument handles POST /api/v1/projects/{id}/documents. The body is
// multipart/form-data with a single "file" part.
func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	// The router-wide MaxBytesMiddleware already caps the body
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteBadRequest(w, "invalid multipart upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequest(w, "missing file part")
		return
	}
	defer file.Close()

	caller := middleware.GetIdentity(r)
	doc, err := s.gateway.Upload(r.Context(), caller, projectID,
		header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.recordEvent(r, &audit.Event{
		EventType:    audit.EventTypeDataObjectUpload,
		Status:       audit.EventStatusSuccess,
		UserID:       caller,
		ResourceType: audit.ResourceTypeObject,
		ResourceID:   doc.FilePath,
		Message:      "document uploaded: " + doc.FileName,
	})

	httputil.WriteCreated(w, doc)
}

// listProjectDocuments handles GET /api/v1/projects/{id}/documents
func (s *Server) listProjectDocuments(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	docs, err := s.store.ListProjectDocuments(r.Context(), middleware.GetIdentity(r), projectID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, docs)
}

// getDocument handles GET /api/v1/documents/{id}
func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	doc, err := s.store.GetDocument(r.Context(), middleware.GetIdentity(r), id)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, doc)
}

// downloadObject handles GET /api/v1/objects/{key}. The key is the full
// storage path recorded on the document row.
func (s *Server) downloadObject(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "key")
	if !ok {
		return
	}

	caller := middleware.GetIdentity(r)
	body, doc, err := s.gateway.Download(r.Context(), caller, key)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	defer body.Close()

	s.recordEvent(r, &audit.Event{
		EventType:    audit.EventTypeDataObjectDownload,
		Status:       audit.EventStatusSuccess,
		UserID:       caller,
		ResourceType: audit.ResourceTypeObject,
		ResourceID:   key,
		Message:      "document downloaded: " + doc.FileName,
	})

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	if doc.FileSize != nil {
		w.Header().Set("Content-Length", strconv.FormatInt(*doc.FileSize, 10))
	}

	if _, err := io.Copy(w, body); err != nil {
		s.logger.WithError(err).Warn("failed to stream object")
	}
}

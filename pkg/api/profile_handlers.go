package api

import (
	"net/http"

	"github.com/crewdesk/crewdesk/pkg/audit"
	"github.com/crewdesk/crewdesk/pkg/authz"
	"github.com/crewdesk/crewdesk/pkg/httputil"
	"github.com/crewdesk/crewdesk/pkg/middleware"
)

// listProfiles handles GET /api/v1/profiles
func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.store.ListProfiles(r.Context(), middleware.GetIdentity(r))
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, profiles)
}

// getProfile handles GET /api/v1/profiles/{id}
func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	profile, err := s.store.GetProfile(r.Context(), middleware.GetIdentity(r), id)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, profile)
}

// updateProfileRequest is the body for PUT /api/v1/profiles/{id}
type updateProfileRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// updateProfile handles PUT /api/v1/profiles/{id}
func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req updateProfileRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}

	caller := middleware.GetIdentity(r)
	if err := s.store.UpdateProfile(r.Context(), caller, id, req.Email, req.FullName); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	profile, err := s.store.GetProfile(r.Context(), caller, id)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, profile)
}

// updateRoleRequest is the body for PUT /api/v1/profiles/{id}/role
type updateRoleRequest struct {
	Role authz.Role `json:"role"`
}

// updateProfileRole handles PUT /api/v1/profiles/{id}/role
func (s *Server) updateProfileRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req updateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	caller := middleware.GetIdentity(r)
	if err := s.store.UpdateProfileRole(r.Context(), caller, id, req.Role); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.recordEvent(r, &audit.Event{
		EventType:    audit.EventTypeAuthzRoleChange,
		Status:       audit.EventStatusSuccess,
		UserID:       caller,
		ResourceType: audit.ResourceTypeProfile,
		ResourceID:   id,
		Message:      "role changed to " + string(req.Role),
	})

	httputil.WriteNoContent(w)
}

// deleteProfile handles DELETE /api/v1/profiles/{id}. Removing the identity
// cascades to the profile, its assignments, and its tokens.
func (s *Server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	caller := middleware.GetIdentity(r)
	if err := s.provisioner.DeleteIdentity(r.Context(), caller, id); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.recordEvent(r, &audit.Event{
		EventType:    audit.EventTypeAdminProfileDelete,
		Status:       audit.EventStatusSuccess,
		UserID:       caller,
		ResourceType: audit.ResourceTypeProfile,
		ResourceID:   id,
		Message:      "identity and profile deleted",
	})

	httputil.WriteNoContent(w)
}

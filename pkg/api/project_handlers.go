package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/crewdesk/crewdesk/pkg/audit"
	"github.com/crewdesk/crewdesk/pkg/authz"
	"github.com/crewdesk/crewdesk/pkg/httputil"
	"github.com/crewdesk/crewdesk/pkg/middleware"
	"github.com/crewdesk/crewdesk/pkg/store"
)

// projectRequest is the body for creating and updating projects
type projectRequest struct {
	Name          string              `json:"name"`
	Description   *string             `json:"description,omitempty"`
	Deadline      *time.Time          `json:"deadline,omitempty"`
	Status        authz.ProjectStatus `json:"status,omitempty"`
	ProjectLeadID *string             `json:"project_lead_id,omitempty"`
}

// createProject handles POST /api/v1/projects
func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	caller := middleware.GetIdentity(r)
	project := &store.Project{
		Name:          req.Name,
		Description:   req.Description,
		Deadline:      req.Deadline,
		Status:        req.Status,
		ProjectLeadID: req.ProjectLeadID,
	}
	if err := s.store.CreateProject(r.Context(), caller, project); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.recordEvent(r, &audit.Event{
		EventType:    audit.EventTypeDataProjectCreate,
		Status:       audit.EventStatusSuccess,
		UserID:       caller,
		ResourceType: audit.ResourceTypeProject,
		ResourceID:   strconv.FormatInt(project.ID, 10),
		Message:      "project created: " + project.Name,
	})

	httputil.WriteCreated(w, project)
}

// listProjects handles GET /api/v1/projects
func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context(), middleware.GetIdentity(r))
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, projects)
}

// getProject handles GET /api/v1/projects/{id}
func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	project, err := s.store.GetProject(r.Context(), middleware.GetIdentity(r), id)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, project)
}

// updateProject handles PUT /api/v1/projects/{id}
func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req projectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	caller := middleware.GetIdentity(r)
	project := &store.Project{
		ID:            id,
		Name:          req.Name,
		Description:   req.Description,
		Deadline:      req.Deadline,
		Status:        req.Status,
		ProjectLeadID: req.ProjectLeadID,
	}
	if err := s.store.UpdateProject(r.Context(), caller, project); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.recordEvent(r, &audit.Event{
		EventType:    audit.EventTypeDataProjectUpdate,
		Status:       audit.EventStatusSuccess,
		UserID:       caller,
		ResourceType: audit.ResourceTypeProject,
		ResourceID:   strconv.FormatInt(id, 10),
		Message:      "project updated",
	})

	updated, err := s.store.GetProject(r.Context(), caller, id)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

// deleteProject handles DELETE /api/v1/projects/{id}
func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	caller := middleware.GetIdentity(r)
	if err := s.store.DeleteProject(r.Context(), caller, id); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.recordEvent(r, &audit.Event{
		EventType:    audit.EventTypeDataProjectDelete,
		Status:       audit.EventStatusSuccess,
		UserID:       caller,
		ResourceType: audit.ResourceTypeProject,
		ResourceID:   strconv.FormatInt(id, 10),
		Message:      "project deleted",
	})

	httputil.WriteNoContent(w)
}

// assignmentRequest is the body for POST /api/v1/projects/{id}/assignments
type assignmentRequest struct {
	UserID string `json:"user_id"`
}

// createAssignment handles POST /api/v1/projects/{id}/assignments
func (s *Server) createAssignment(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req assignmentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.UserID, "user_id") {
		return
	}

	caller := middleware.GetIdentity(r)
	assignment, err := s.store.CreateAssignment(r.Context(), caller, projectID, req.UserID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.recordEvent(r, &audit.Event{
		EventType:    audit.EventTypeDataAssignmentCreate,
		Status:       audit.EventStatusSuccess,
		UserID:       caller,
		ResourceType: audit.ResourceTypeAssignment,
		ResourceID:   strconv.FormatInt(projectID, 10),
		Message:      "user " + req.UserID + " assigned",
	})

	httputil.WriteCreated(w, assignment)
}

// listProjectAssignments handles GET /api/v1/projects/{id}/assignments
func (s *Server) listProjectAssignments(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	assignments, err := s.store.ListProjectAssignments(r.Context(), middleware.GetIdentity(r), projectID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, assignments)
}

// deleteAssignment handles DELETE /api/v1/projects/{id}/assignments/{user_id}
func (s *Server) deleteAssignment(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
	if !ok {
		return
	}

	caller := middleware.GetIdentity(r)
	if err := s.store.DeleteAssignment(r.Context(), caller, projectID, userID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.recordEvent(r, &audit.Event{
		EventType:    audit.EventTypeDataAssignmentDelete,
		Status:       audit.EventStatusSuccess,
		UserID:       caller,
		ResourceType: audit.ResourceTypeAssignment,
		ResourceID:   strconv.FormatInt(projectID, 10),
		Message:      "user " + userID + " unassigned",
	})

	httputil.WriteNoContent(w)
}

// listUserAssignments handles GET /api/v1/users/{id}/assignments
func (s *Server) listUserAssignments(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	assignments, err := s.store.ListUserAssignments(r.Context(), middleware.GetIdentity(r), userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, assignments)
}

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/crewdesk/crewdesk/pkg/audit"
	"github.com/crewdesk/crewdesk/pkg/authz"
	"github.com/crewdesk/crewdesk/pkg/httputil"
	"github.com/crewdesk/crewdesk/pkg/middleware"
)

// auditSearcher is the optional read side of the audit trail. The DB logger
// implements it; a write-only fake does not, and then the endpoint reports
// the trail as unavailable.
type auditSearcher interface {
	Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.Event, error)
}

// searchAuditEvents handles GET /api/v1/audit/events. The trail exposes who
// did what to whom, so only admins may read it.
func (s *Server) searchAuditEvents(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r)

	role, err := s.store.Engine().Resolver().ResolveRole(r.Context(), s.store.DB(), caller)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if role != authz.RoleAdmin {
		httputil.WriteErrorMessage(w, http.StatusForbidden, "audit trail requires admin")
		return
	}

	searcher, ok := s.audit.(auditSearcher)
	if !ok {
		httputil.WriteErrorMessage(w, http.StatusNotImplemented, "audit search is not available")
		return
	}

	filter := audit.SearchFilter{
		UserID: httputil.ParseQueryString(r, "user_id", ""),
		Limit:  100,
	}
	if limitStr := httputil.ParseQueryString(r, "limit", ""); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 1000 {
			filter.Limit = limit
		}
	}
	if status := httputil.ParseQueryString(r, "status", ""); status != "" {
		eventStatus := audit.EventStatus(status)
		filter.Status = &eventStatus
	}
	if since := httputil.ParseQueryString(r, "since", ""); since != "" {
		start, err := time.Parse(time.RFC3339, since)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid since timestamp, want RFC3339")
			return
		}
		filter.StartTime = &start
	}

	events, err := searcher.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, events)
}

package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/crewdesk/crewdesk/pkg/audit"
	"github.com/crewdesk/crewdesk/pkg/httputil"
	"github.com/crewdesk/crewdesk/pkg/identity"
	"github.com/crewdesk/crewdesk/pkg/middleware"
	"github.com/crewdesk/crewdesk/pkg/objects"
	"github.com/crewdesk/crewdesk/pkg/observability"
	"github.com/crewdesk/crewdesk/pkg/store"
)

// maxUploadBytes caps document uploads at 50MB
const maxUploadBytes = 50 << 20

// Server is the crewdesk HTTP API. Handlers are thin: they parse the request,
// hand the caller identity to the store or gateway, and translate the result.
// No permission logic lives here.
type Server struct {
	store       *store.Store
	gateway     *objects.Gateway
	tokens      *identity.TokenManager
	provisioner *identity.Provisioner
	oidc        *identity.OIDCAuthenticator // nil when external login is not configured
	audit       audit.Logger                // nil disables the trail
	logger      *observability.Logger
	router      *mux.Router
}

// Config carries the server's collaborators
type Config struct {
	Store       *store.Store
	Gateway     *objects.Gateway
	Tokens      *identity.TokenManager
	Provisioner *identity.Provisioner
	OIDC        *identity.OIDCAuthenticator
	Audit       audit.Logger
	Logger      *observability.Logger
	Metrics     *observability.Metrics

	// RateLimit runs after authentication so limits key on the caller
	// identity rather than the client address.
	RateLimit mux.MiddlewareFunc
}

// NewServer creates the API server and wires all routes
func NewServer(cfg Config) *Server {
	s := &Server{
		store:       cfg.Store,
		gateway:     cfg.Gateway,
		tokens:      cfg.Tokens,
		provisioner: cfg.Provisioner,
		oidc:        cfg.OIDC,
		audit:       cfg.Audit,
		logger:      cfg.Logger,
		router:      mux.NewRouter(),
	}

	s.setupRoutes(cfg.Metrics, cfg.RateLimit)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(metrics *observability.Metrics, rateLimit mux.MiddlewareFunc) {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(s.logger))
	s.router.Use(httputil.RecoveryMiddleware(s.logger))
	s.router.Use(httputil.MaxBytesMiddleware(maxUploadBytes))
	if metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(metrics))
	}

	authMW := middleware.NewAuthMiddleware(s.tokens, false)

	// Public routes: self-signup and the OIDC login flow
	s.router.HandleFunc("/signup", s.signup).Methods("POST")
	if s.oidc != nil {
		s.router.HandleFunc("/auth/login", s.oidcLogin).Methods("GET")
		s.router.HandleFunc("/auth/callback", s.oidcCallback).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMW.Handler)
	if rateLimit != nil {
		api.Use(rateLimit)
	}

	// Profile routes
	api.HandleFunc("/profiles", s.listProfiles).Methods("GET")
	api.HandleFunc("/profiles/{id}", s.getProfile).Methods("GET")
	api.HandleFunc("/profiles/{id}", s.updateProfile).Methods("PUT")
	api.HandleFunc("/profiles/{id}/role", s.updateProfileRole).Methods("PUT")
	api.HandleFunc("/profiles/{id}", s.deleteProfile).Methods("DELETE")

	// Project routes
	api.HandleFunc("/projects", s.createProject).Methods("POST")
	api.HandleFunc("/projects", s.listProjects).Methods("GET")
	api.HandleFunc("/projects/{id}", s.getProject).Methods("GET")
	api.HandleFunc("/projects/{id}", s.updateProject).Methods("PUT")
	api.HandleFunc("/projects/{id}", s.deleteProject).Methods("DELETE")

	// Assignment routes
	api.HandleFunc("/projects/{id}/assignments", s.createAssignment).Methods("POST")
	api.HandleFunc("/projects/{id}/assignments", s.listProjectAssignments).Methods("GET")
	api.HandleFunc("/projects/{id}/assignments/{user_id}", s.deleteAssignment).Methods("DELETE")
	api.HandleFunc("/users/{id}/assignments", s.listUserAssignments).Methods("GET")

	// Document and object routes
	api.HandleFunc("/projects/{id}/documents", s.uploadDocument).Methods("POST")
	api.HandleFunc("/projects/{id}/documents", s.listProjectDocuments).Methods("GET")
	api.HandleFunc("/documents/{id}", s.getDocument).Methods("GET")
	api.HandleFunc("/objects/{key:.*}", s.downloadObject).Methods("GET")

	// Token routes
	api.HandleFunc("/tokens", s.createToken).Methods("POST")
	api.HandleFunc("/tokens", s.listTokens).Methods("GET")
	api.HandleFunc("/tokens/{id}", s.revokeToken).Methods("DELETE")

	// Audit routes, admin only
	if s.audit != nil {
		api.HandleFunc("/audit/events", s.searchAuditEvents).Methods("GET")
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the server wrapped with OpenTelemetry HTTP instrumentation
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s, "crewdesk-api")
}

// recordEvent writes an audit event when the trail is enabled. Failures are
// logged and swallowed; the request outcome never depends on the trail.
func (s *Server) recordEvent(r *http.Request, event *audit.Event) {
	if s.audit == nil {
		return
	}
	event.RequestID = observability.GetRequestID(r.Context())
	if err := s.audit.Log(r.Context(), event); err != nil {
		s.logger.WithError(err).Warn("failed to record audit event")
	}
}

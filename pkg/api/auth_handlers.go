package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/crewdesk/crewdesk/pkg/audit"
	"github.com/crewdesk/crewdesk/pkg/httputil"
	"github.com/crewdesk/crewdesk/pkg/middleware"
)

const oidcStateCookie = "crewdesk_oidc_state"

// signupRequest is the body for POST /signup
type signupRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// signup handles POST /signup. New identities always start as developers;
// only an admin can raise a role afterwards.
func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}

	profile, err := s.provisioner.SignUp(r.Context(), req.Email, req.FullName)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.recordEvent(r, &audit.Event{
		EventType:    audit.EventTypeAuthSignup,
		Status:       audit.EventStatusSuccess,
		UserID:       profile.ID,
		ResourceType: audit.ResourceTypeProfile,
		ResourceID:   profile.ID,
		Message:      "profile provisioned via signup",
	})

	httputil.WriteCreated(w, profile)
}

// oidcLogin handles GET /auth/login by redirecting to the identity provider
func (s *Server) oidcLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oidcStateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, s.oidc.AuthCodeURL(state), http.StatusFound)
}

// oidcCallback handles GET /auth/callback: it verifies the state, exchanges
// the code, provisions a profile on first login, and issues an API token.
func (s *Server) oidcCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oidcStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		httputil.WriteBadRequest(w, "invalid OIDC state")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.WriteBadRequest(w, "missing authorization code")
		return
	}

	user, err := s.oidc.Exchange(r.Context(), code)
	if err != nil {
		s.logger.WithError(err).Warn("OIDC exchange failed")
		httputil.WriteUnauthorized(w, "login failed")
		return
	}

	profile, err := s.provisioner.EnsureIdentity(r.Context(), user)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	expiresAt := time.Now().Add(24 * time.Hour)
	_, token, err := s.tokens.CreateToken(r.Context(), profile.ID, "oidc session", &expiresAt)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.recordEvent(r, &audit.Event{
		EventType:    audit.EventTypeAuthLogin,
		Status:       audit.EventStatusSuccess,
		UserID:       profile.ID,
		ResourceType: audit.ResourceTypeProfile,
		ResourceID:   profile.ID,
		Message:      "OIDC login",
	})

	httputil.WriteSuccess(w, map[string]interface{}{
		"profile": profile,
		"token":   token,
	})
}

// createTokenRequest is the body for POST /api/v1/tokens
type createTokenRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// createToken handles POST /api/v1/tokens
func (s *Server) createToken(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r)

	var req createTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	apiToken, token, err := s.tokens.CreateToken(r.Context(), caller, req.Name, req.ExpiresAt)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.recordEvent(r, &audit.Event{
		EventType:    audit.EventTypeAuthTokenCreate,
		Status:       audit.EventStatusSuccess,
		UserID:       caller,
		ResourceType: audit.ResourceTypeToken,
		ResourceID:   strconv.FormatInt(apiToken.ID, 10),
		Message:      "API token created: " + req.Name,
	})

	// The plaintext token is shown exactly once
	httputil.WriteCreated(w, map[string]interface{}{
		"token":     token,
		"api_token": apiToken,
	})
}

// listTokens handles GET /api/v1/tokens
func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.tokens.ListUserTokens(r.Context(), middleware.GetIdentity(r))
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, tokens)
}

// revokeToken handles DELETE /api/v1/tokens/{id}
func (s *Server) revokeToken(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r)

	tokenID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.tokens.RevokeToken(r.Context(), caller, tokenID); err != nil {
		// Revoking a token the caller does not own reads as not found
		httputil.WriteNotFoundError(w, "token not found")
		return
	}

	s.recordEvent(r, &audit.Event{
		EventType:    audit.EventTypeAuthTokenRevoke,
		Status:       audit.EventStatusSuccess,
		UserID:       caller,
		ResourceType: audit.ResourceTypeToken,
		ResourceID:   strconv.FormatInt(tokenID, 10),
		Message:      "API token revoked",
	})

	httputil.WriteNoContent(w)
}

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/appmint/authgate/internal/audit"
	"github.com/appmint/authgate/internal/authn"
	"github.com/appmint/authgate/internal/domain"
	agerrors "github.com/appmint/authgate/internal/errors"
	"github.com/appmint/authgate/internal/metrics"
	"github.com/appmint/authgate/internal/store"
)

// AdminHandler serves the console API: login, logout, session management,
// and the identity endpoint.
type AdminHandler struct {
	login    *authn.LoginService
	sessions store.SessionRepository
	auditor  *audit.Recorder
	logger   *slog.Logger

	cookieSecure bool
	cookieDomain string
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(login *authn.LoginService, sessions store.SessionRepository, auditor *audit.Recorder, logger *slog.Logger, cookieSecure bool, cookieDomain string) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		login:        login,
		sessions:     sessions,
		auditor:      auditor,
		logger:       logger,
		cookieSecure: cookieSecure,
		cookieDomain: cookieDomain,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresAt   time.Time      `json:"expires_at"`
	User        *authn.Identity `json:"user"`
}

// Login handles POST /api/v1/admin/login. Invalid credentials always
// produce the same response; the distinction lives in logs and audit.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 32*1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.login.Login(r.Context(), req.Email, req.Password, r.RemoteAddr, r.UserAgent())
	if err != nil {
		metrics.RecordLogin("failure")
		if agerrors.IsCode(err, agerrors.CodeInternal) {
			h.logger.Error("login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	metrics.RecordLogin("success")
	metrics.RecordTokenIssued("access", domain.TokenFormatReference)

	http.SetCookie(w, &http.Cookie{
		Name:     authn.SessionCookieName,
		Value:    result.AccessToken,
		Path:     "/",
		Domain:   h.cookieDomain,
		Expires:  result.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   result.Session.ExpiresAt,
		User: &authn.Identity{
			ID:          result.Admin.ID,
			Email:       result.Admin.Email,
			Role:        result.Admin.Role,
			Permissions: result.Admin.Permissions,
			SuperAdmin:  result.Admin.SuperAdmin,
		},
	})
}

// Logout handles POST /api/v1/admin/logout.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := authn.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.login.Logout(r.Context(), identity, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Error("logout failed", "error", err, "admin_id", identity.ID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Expire the cookie regardless of how the session was presented.
	http.SetCookie(w, &http.Cookie{
		Name:     authn.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me handles GET /api/v1/users/me.
func (h *AdminHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := authn.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

// sessionView is the session shape returned to the console. Token hashes
// never leave the store layer.
type sessionView struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ClientID       string    `json:"client_id,omitempty"`
	Scope          string    `json:"scope,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
}

// ListSessions handles GET /api/v1/admin/sessions.
func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	// Optional ?user_id= filter; empty lists everything.
	sessions, err := h.sessions.List(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		h.logger.Error("session list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView{
			ID:             s.ID,
			UserID:         s.UserID,
			ClientID:       s.ClientID,
			Scope:          s.Scope,
			Active:         s.Active,
			CreatedAt:      s.CreatedAt,
			ExpiresAt:      s.ExpiresAt,
			LastActivityAt: s.LastActivityAt,
			IPAddress:      s.IPAddress,
			UserAgent:      s.UserAgent,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

// DeleteSession handles DELETE /api/v1/admin/sessions/{sessionID}.
// Revocation is idempotent: deleting an already-revoked session is 204.
func (h *AdminHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "Session ID required")
		return
	}

	if _, err := h.sessions.GetByID(r.Context(), sessionID); err != nil {
		if agerrors.IsCode(err, agerrors.CodeNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		h.logger.Error("session lookup failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := h.sessions.Revoke(r.Context(), sessionID); err != nil {
		h.logger.Error("session revoke failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	actor := ""
	if identity, ok := authn.IdentityFrom(r.Context()); ok {
		actor = identity.ID
	}
	h.auditor.Record(r.Context(), audit.Entry{
		Actor:     actor,
		Action:    domain.AuditActionDelete,
		Target:    "session:" + sessionID,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})

	w.WriteHeader(http.StatusNoContent)
}

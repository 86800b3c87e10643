// Package authn implements the bearer-token/session gate protecting admin
// API routes, and the permission checks layered on top of it.
package authn

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/appmint/authgate/internal/audit"
	"github.com/appmint/authgate/internal/crypto"
	"github.com/appmint/authgate/internal/domain"
	agerrors "github.com/appmint/authgate/internal/errors"
	"github.com/appmint/authgate/internal/metrics"
	"github.com/appmint/authgate/internal/secrets"
	"github.com/appmint/authgate/internal/store"
)

// SessionCookieName is the cookie consulted when no bearer header is
// present (browser-originated console calls).
const SessionCookieName = "authgate_session"

// Identity is the authenticated principal attached to a request. It lives
// for one request and is never persisted.
type Identity struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	SuperAdmin  bool     `json:"is_super_admin"`

	// SessionID is set for opaque-token authentication only.
	SessionID string `json:"-"`
}

// HasPermission reports whether the identity may perform "module:action".
// A permission list containing "*" or the exact string grants access.
func (id *Identity) HasPermission(permission string) bool {
	if id.SuperAdmin {
		return true
	}
	for _, p := range id.Permissions {
		if p == "*" || p == permission {
			return true
		}
	}
	return false
}

type contextKey struct{}

// WithIdentity stores the identity in the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFrom retrieves the identity from the context, if any.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok
}

// Authenticator resolves bearer tokens and session cookies into identities.
// Opaque tokens resolve through the session store; signed tokens verify
// against the process signing key without a store round-trip. The two are
// separate namespaces: a signed token never resolves a console session and
// an opaque console token never parses as a JWT.
type Authenticator struct {
	sessions store.SessionRepository
	admins   store.AdminRepository
	signer   *crypto.TokenSigner
	auditor  *audit.Recorder
	logger   *slog.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(sessions store.SessionRepository, admins store.AdminRepository, signer *crypto.TokenSigner, auditor *audit.Recorder, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		sessions: sessions,
		admins:   admins,
		signer:   signer,
		auditor:  auditor,
		logger:   logger,
	}
}

// Authenticate resolves the request's credentials into an Identity.
// The error carries the internal reason; callers must answer with a
// generic unauthorized body regardless.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	token := extractToken(r)
	if token == "" {
		return nil, agerrors.Unauthorized("Missing access token")
	}

	if looksLikeJWT(token) {
		return a.authenticateSigned(ctx, token)
	}
	return a.authenticateOpaque(ctx, token)
}

func (a *Authenticator) authenticateSigned(ctx context.Context, token string) (*Identity, error) {
	claims, err := a.signer.Verify(token)
	if err != nil {
		// Expired and invalid-signature failures stay distinct in logs.
		return nil, err
	}

	// Only signed access tokens carry a scope claim. ID tokens verify with
	// the same key but are identity assertions, not credentials; accepting
	// one here would collapse the two token namespaces.
	if claims.Scope == "" {
		return nil, agerrors.Unauthorized("token is not an access token")
	}

	admin, err := a.admins.GetByID(ctx, claims.Subject)
	if err != nil || !admin.Active {
		return nil, agerrors.Unauthorized("unknown or disabled subject")
	}

	return identityFor(admin, ""), nil
}

func (a *Authenticator) authenticateOpaque(ctx context.Context, token string) (*Identity, error) {
	session, err := a.sessions.GetByAccessTokenHash(ctx, secrets.HashToken(token))
	if err != nil {
		if agerrors.IsCode(err, agerrors.CodeNotFound) {
			return nil, agerrors.Unauthorized("session not found")
		}
		return nil, agerrors.Internal("session lookup failed", err)
	}
	if !session.Active {
		return nil, agerrors.Unauthorized("session revoked")
	}
	if session.IsExpired() {
		return nil, agerrors.New(agerrors.CodeSessionExpired, "session expired")
	}

	admin, err := a.admins.GetByID(ctx, session.UserID)
	if err != nil || !admin.Active {
		return nil, agerrors.Unauthorized("unknown or disabled subject")
	}

	// Best effort; a failed touch must not reject the request.
	if err := a.sessions.TouchActivity(ctx, session.ID); err != nil {
		a.logger.Debug("session activity touch failed", "error", err, "session_id", session.ID)
	}

	return identityFor(admin, session.ID), nil
}

func identityFor(admin *domain.Admin, sessionID string) *Identity {
	return &Identity{
		ID:          admin.ID,
		Email:       admin.Email,
		Role:        admin.Role,
		Permissions: admin.Permissions,
		SuperAdmin:  admin.SuperAdmin,
		SessionID:   sessionID,
	}
}

// Middleware rejects unauthenticated requests with 401 and attaches the
// identity to the context otherwise. The response body never reveals which
// check failed; the internal reason goes to logs and the audit trail.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.Authenticate(r.Context(), r)
		if err != nil {
			status := http.StatusUnauthorized
			body := "Unauthorized"
			reason := "invalid"
			if agerrors.IsCode(err, agerrors.CodeInternal) {
				status = http.StatusInternalServerError
				body = "Internal server error"
				reason = "error"
			} else if agerrors.Message(err, "") == "Missing access token" {
				body = "Missing access token"
				reason = "missing"
			} else if agerrors.IsCode(err, agerrors.CodeTokenExpired) || agerrors.IsCode(err, agerrors.CodeSessionExpired) {
				reason = "expired"
			}
			metrics.RecordAuthRejection(reason)

			a.logger.Info("authentication rejected", "reason", err.Error(), "path", r.URL.Path)
			a.auditor.Record(r.Context(), audit.Entry{
				Action:    domain.AuditActionFailed,
				Target:    r.URL.Path,
				IPAddress: r.RemoteAddr,
				UserAgent: r.UserAgent(),
				Metadata:  map[string]string{"error": agerrors.Message(err, "unauthorized")},
			})

			writeJSONError(w, status, body)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequirePermission enforces a "module:action" permission. It must run
// after Middleware.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFrom(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if !identity.HasPermission(permission) {
				writeJSONError(w, http.StatusForbidden, "Permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken pulls the credential from the Authorization header first,
// then the session cookie.
func extractToken(r *http.Request) string {
	if ah := strings.TrimSpace(r.Header.Get("Authorization")); ah != "" {
		if strings.HasPrefix(strings.ToLower(ah), "bearer ") {
			return strings.TrimSpace(ah[len("Bearer "):])
		}
		return ""
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// looksLikeJWT distinguishes the two token namespaces: signed tokens have
// exactly two dots, opaque reference tokens are dot-free base64url.
func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/appmint/authgate/internal/authn"
	agerrors "github.com/appmint/authgate/internal/errors"
	"github.com/appmint/authgate/internal/metrics"
	"github.com/appmint/authgate/internal/oauth"
)

// oauthErrorResponse is the RFC 6749 error body. Descriptions stay
// generic; the internal reason is logged, never returned.
type oauthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// OAuthHandler serves the token, revocation, introspection, and
// authorization endpoints.
type OAuthHandler struct {
	tokens        *oauth.TokenService
	authorize     *oauth.AuthorizeService
	authenticator *authn.Authenticator
	logger        *slog.Logger
}

// NewOAuthHandler creates an OAuthHandler.
func NewOAuthHandler(tokens *oauth.TokenService, authorize *oauth.AuthorizeService, authenticator *authn.Authenticator, logger *slog.Logger) *OAuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OAuthHandler{
		tokens:        tokens,
		authorize:     authorize,
		authenticator: authenticator,
		logger:        logger,
	}
}

// Token handles POST /oauth/token.
func (h *OAuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	req, err := h.tokens.ParseTokenRequest(r)
	if err != nil {
		h.writeOAuthError(w, r, err)
		metrics.RecordTokenExchange("invalid_request")
		return
	}

	resp, err := h.tokens.Exchange(r.Context(), req)
	if err != nil {
		code, _ := agerrors.OAuthError(err)
		metrics.RecordTokenExchange(code)
		h.writeOAuthError(w, r, err)
		return
	}

	metrics.RecordTokenExchange("success")
	writeJSON(w, http.StatusOK, resp)
}

// Revoke handles POST /oauth/revoke. Per RFC 7009 the endpoint answers
// 200 with an empty body whether or not the token matched; only a
// malformed request or failed client authentication is an error.
func (h *OAuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	req, err := h.tokens.ParseRevocationRequest(r)
	if err != nil {
		h.writeOAuthError(w, r, err)
		return
	}

	if err := h.tokens.Revoke(r.Context(), req); err != nil {
		h.writeOAuthError(w, r, err)
		return
	}

	metrics.RecordTokenRevocation()
	w.WriteHeader(http.StatusOK)
}

// Introspect handles POST /oauth/introspect (RFC 7662).
func (h *OAuthHandler) Introspect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	req, err := h.tokens.ParseIntrospectionRequest(r)
	if err != nil {
		h.writeOAuthError(w, r, err)
		return
	}

	resp, err := h.tokens.Introspect(r.Context(), req)
	if err != nil {
		h.writeOAuthError(w, r, err)
		return
	}

	metrics.RecordTokenIntrospection(resp.Active)
	writeJSON(w, http.StatusOK, resp)
}

// Authorize handles GET /oauth/authorize. The caller must already hold a
// console session; this endpoint issues a short-lived single-use code
// bound to the client, redirect URI, and PKCE challenge.
func (h *OAuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	req, err := h.authorize.ParseAuthorizeRequest(r)
	if err != nil {
		h.writeOAuthError(w, r, err)
		return
	}

	client, err := h.authorize.ValidateClient(r.Context(), req)
	if err != nil {
		// Redirect URI is not trusted until the client checks out, so
		// validation failures render inline rather than redirect.
		h.writeOAuthError(w, r, err)
		return
	}

	identity, err := h.authenticator.Authenticate(r.Context(), r)
	if err != nil {
		h.logger.Info("authorize rejected", "reason", err.Error(), "client_id", client.ID)
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	code, err := h.authorize.CreateAuthCode(r.Context(), req, identity.ID)
	if err != nil {
		h.logger.Error("auth code issuance failed", "error", err, "client_id", client.ID)
		http.Redirect(w, r, h.authorize.BuildErrorResponse(req.RedirectURI, "server_error", "", req.State), http.StatusFound)
		return
	}

	metrics.RecordAuthCodeIssued()
	http.Redirect(w, r, h.authorize.BuildAuthorizationResponse(req.RedirectURI, code.Code, req.State), http.StatusFound)
}

// writeOAuthError maps an internal error to the RFC 6749 wire form. The
// internal reason is logged; the body carries only the coarse code.
func (h *OAuthHandler) writeOAuthError(w http.ResponseWriter, r *http.Request, err error) {
	code, status := agerrors.OAuthError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("oauth request failed", "error", err, "path", r.URL.Path)
	} else {
		h.logger.Info("oauth request rejected", "error", err, "path", r.URL.Path)
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="authgate"`)
	}

	resp := oauthErrorResponse{Error: code}
	if status < http.StatusInternalServerError {
		// Structured messages are written for the wire; internal errors
		// get no description at all.
		resp.ErrorDescription = agerrors.Message(err, "")
	}
	writeJSON(w, status, resp)
}

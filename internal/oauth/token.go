package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/appmint/authgate/internal/audit"
	"github.com/appmint/authgate/internal/crypto"
	"github.com/appmint/authgate/internal/domain"
	agerrors "github.com/appmint/authgate/internal/errors"
	"github.com/appmint/authgate/internal/metrics"
	"github.com/appmint/authgate/internal/secrets"
	"github.com/appmint/authgate/internal/store"
)

const maxTokenBodySize = 32 * 1024 // 32KB

// GrantTypeAuthorizationCode is the only grant the token endpoint serves.
const GrantTypeAuthorizationCode = "authorization_code"

// TokenRequest is the normalized token request. Form-encoded and JSON
// bodies both parse into it; core logic never sees the raw body.
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	CodeVerifier string `json:"code_verifier"`

	// Request provenance for auditing, not part of the wire format.
	RemoteAddr string `json:"-"`
	UserAgent  string `json:"-"`
}

// RevocationRequest is a normalized token revocation request (RFC 7009).
type RevocationRequest struct {
	Token         string `json:"token"`
	TokenTypeHint string `json:"token_type_hint"` // "access_token" or "refresh_token"
	ClientID      string `json:"client_id"`
	ClientSecret  string `json:"client_secret"`

	RemoteAddr string `json:"-"`
	UserAgent  string `json:"-"`
}

// IntrospectionRequest is a normalized introspection request (RFC 7662).
type IntrospectionRequest struct {
	Token         string `json:"token"`
	TokenTypeHint string `json:"token_type_hint"`
	ClientID      string `json:"client_id"`
	ClientSecret  string `json:"client_secret"`
}

// IntrospectionResponse is the introspection response body.
type IntrospectionResponse struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Sub       string `json:"sub,omitempty"`
	Aud       string `json:"aud,omitempty"`
	Iss       string `json:"iss,omitempty"`
}

// TokenResponse is the token endpoint response body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token"`
	Scope        string `json:"scope,omitempty"`
}

// TokenService handles token exchange, revocation, and introspection.
type TokenService struct {
	validator *ClientValidator
	authCodes store.AuthCodeRepository
	sessions  store.SessionRepository
	admins    store.AdminRepository
	signer    *crypto.TokenSigner
	auditor   *audit.Recorder
	logger    *slog.Logger

	accessTTL  time.Duration
	sessionTTL time.Duration
}

// NewTokenService creates a TokenService.
func NewTokenService(
	validator *ClientValidator,
	authCodes store.AuthCodeRepository,
	sessions store.SessionRepository,
	admins store.AdminRepository,
	signer *crypto.TokenSigner,
	auditor *audit.Recorder,
	logger *slog.Logger,
	accessTTL, sessionTTL time.Duration,
) *TokenService {
	if logger == nil {
		logger = slog.Default()
	}
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if sessionTTL <= 0 {
		sessionTTL = accessTTL
	}
	return &TokenService{
		validator:  validator,
		authCodes:  authCodes,
		sessions:   sessions,
		admins:     admins,
		signer:     signer,
		auditor:    auditor,
		logger:     logger,
		accessTTL:  accessTTL,
		sessionTTL: sessionTTL,
	}
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// ParseTokenRequest parses a token request from form-encoded or JSON bodies.
// Client credentials in an Authorization: Basic header win over body fields.
func (s *TokenService) ParseTokenRequest(r *http.Request) (*TokenRequest, error) {
	req := &TokenRequest{}
	if err := parseBody(r, req, func() {
		req.GrantType = r.PostFormValue("grant_type")
		req.Code = r.PostFormValue("code")
		req.RedirectURI = r.PostFormValue("redirect_uri")
		req.ClientID = r.PostFormValue("client_id")
		req.ClientSecret = r.PostFormValue("client_secret")
		req.CodeVerifier = r.PostFormValue("code_verifier")
	}); err != nil {
		return nil, err
	}

	if id, secret, ok := basicClientCredentials(r); ok {
		req.ClientID = id
		req.ClientSecret = secret
	}

	req.RemoteAddr = r.RemoteAddr
	req.UserAgent = r.UserAgent()
	return req, nil
}

// ParseRevocationRequest parses a revocation request from form or JSON.
func (s *TokenService) ParseRevocationRequest(r *http.Request) (*RevocationRequest, error) {
	req := &RevocationRequest{}
	if err := parseBody(r, req, func() {
		req.Token = r.PostFormValue("token")
		req.TokenTypeHint = r.PostFormValue("token_type_hint")
		req.ClientID = r.PostFormValue("client_id")
		req.ClientSecret = r.PostFormValue("client_secret")
	}); err != nil {
		return nil, err
	}

	if id, secret, ok := basicClientCredentials(r); ok {
		req.ClientID = id
		req.ClientSecret = secret
	}

	if req.Token == "" {
		return nil, agerrors.InvalidInput("token is required")
	}

	req.RemoteAddr = r.RemoteAddr
	req.UserAgent = r.UserAgent()
	return req, nil
}

// ParseIntrospectionRequest parses an introspection request.
func (s *TokenService) ParseIntrospectionRequest(r *http.Request) (*IntrospectionRequest, error) {
	req := &IntrospectionRequest{}
	if err := parseBody(r, req, func() {
		req.Token = r.PostFormValue("token")
		req.TokenTypeHint = r.PostFormValue("token_type_hint")
		req.ClientID = r.PostFormValue("client_id")
		req.ClientSecret = r.PostFormValue("client_secret")
	}); err != nil {
		return nil, err
	}

	if id, secret, ok := basicClientCredentials(r); ok {
		req.ClientID = id
		req.ClientSecret = secret
	}

	if req.Token == "" {
		return nil, agerrors.InvalidInput("token is required")
	}
	return req, nil
}

// Exchange redeems a one-time authorization code for tokens. Validation
// order: structure, client credentials, code state, redirect binding, PKCE,
// then the atomic consume. Every failure funnels into one FAILED audit
// entry; success records LOGIN.
func (s *TokenService) Exchange(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	resp, userID, err := s.exchange(ctx, req)

	entry := audit.Entry{
		Target:    "oauth:token",
		IPAddress: req.RemoteAddr,
		UserAgent: req.UserAgent,
		Metadata: map[string]string{
			"client_id": anonymizeClientID(req.ClientID),
		},
	}
	if err != nil {
		entry.Action = domain.AuditActionFailed
		entry.Metadata["error"] = agerrors.Message(err, "token exchange failed")
		s.auditor.Record(ctx, entry)
		return nil, err
	}

	entry.Action = domain.AuditActionLogin
	entry.Actor = userID
	entry.Metadata["scope"] = resp.Scope
	s.auditor.Record(ctx, entry)
	return resp, nil
}

func (s *TokenService) exchange(ctx context.Context, req *TokenRequest) (*TokenResponse, string, error) {
	if req.GrantType == "" {
		return nil, "", agerrors.InvalidInput("grant_type is required")
	}
	if req.GrantType != GrantTypeAuthorizationCode {
		return nil, "", agerrors.New(agerrors.CodeUnsupportedGrant, "only authorization_code is supported")
	}
	if req.Code == "" {
		return nil, "", agerrors.InvalidInput("code is required")
	}
	if req.ClientID == "" {
		return nil, "", agerrors.InvalidInput("client_id is required")
	}
	if req.RedirectURI == "" {
		return nil, "", agerrors.InvalidInput("redirect_uri is required")
	}

	client, err := s.validator.Validate(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, "", err
	}

	authCode, err := s.authCodes.GetByCode(ctx, req.Code)
	if err != nil {
		if agerrors.IsCode(err, agerrors.CodeNotFound) {
			return nil, "", agerrors.InvalidGrant("invalid authorization code")
		}
		return nil, "", agerrors.Internal("authorization code lookup failed", err)
	}

	if authCode.Used {
		return nil, "", agerrors.InvalidGrant("authorization code already used")
	}
	if authCode.IsExpired() {
		return nil, "", agerrors.InvalidGrant("authorization code expired")
	}
	if authCode.ClientID != client.ID {
		return nil, "", agerrors.InvalidGrant("authorization code was issued to another client")
	}
	if authCode.RedirectURI != req.RedirectURI {
		return nil, "", agerrors.InvalidGrant("redirect_uri mismatch")
	}

	// Public clients carry a PKCE challenge; a code issued with one only
	// redeems with the original verifier.
	if !ValidateCodeVerifier(req.CodeVerifier, authCode.CodeChallenge, authCode.CodeChallengeMethod) {
		return nil, "", agerrors.InvalidGrant("invalid code_verifier")
	}

	// Single conditional update. If two redemptions race, exactly one
	// passes this point.
	if err := s.authCodes.Consume(ctx, req.Code); err != nil {
		if agerrors.IsCode(err, agerrors.CodeNotFound) {
			return nil, "", agerrors.InvalidGrant("authorization code already used")
		}
		return nil, "", agerrors.Internal("authorization code consume failed", err)
	}

	admin, err := s.admins.GetByID(ctx, authCode.UserID)
	if err != nil {
		return nil, "", agerrors.Internal("subject lookup failed", err)
	}

	resp, err := s.issueTokens(ctx, admin, client, authCode.Scope, authCode.Nonce, req.RemoteAddr, req.UserAgent)
	if err != nil {
		return nil, "", err
	}
	return resp, admin.ID, nil
}

// issueTokens mints the access/ID token pair and creates the backing
// session row. The access token format is a per-client setting: reference
// tokens resolve through the session store, jwt tokens verify offline.
func (s *TokenService) issueTokens(ctx context.Context, admin *domain.Admin, client *domain.Client, scope, nonce, remoteAddr, userAgent string) (*TokenResponse, error) {
	idToken, _, err := s.signer.SignIDToken(admin.ID, s.accessTTL, &crypto.Claims{
		Email:         admin.Email,
		EmailVerified: true,
		Name:          admin.DisplayName,
		ClientID:      client.ID,
		Nonce:         nonce,
	})
	if err != nil {
		return nil, agerrors.Internal("sign id token", err)
	}

	var accessToken string
	switch client.TokenFormat {
	case domain.TokenFormatJWT:
		accessToken, _, err = s.signer.SignAccessToken(admin.ID, s.accessTTL, scope, client.ID)
		if err != nil {
			return nil, agerrors.Internal("sign access token", err)
		}
	default:
		accessToken, err = secrets.NewToken()
		if err != nil {
			return nil, agerrors.Internal("generate access token", err)
		}
	}

	refreshToken, err := secrets.NewToken()
	if err != nil {
		return nil, agerrors.Internal("generate refresh token", err)
	}

	now := time.Now()
	session := &domain.Session{
		ID:               uuid.New().String(),
		UserID:           admin.ID,
		ClientID:         client.ID,
		ApplicationID:    client.ApplicationID,
		AccessTokenHash:  secrets.HashToken(accessToken),
		RefreshTokenHash: secrets.HashToken(refreshToken),
		Scope:            scope,
		Active:           true,
		CreatedAt:        now,
		LastActivityAt:   now,
		ExpiresAt:        now.Add(s.sessionTTL),
		UserAgent:        userAgent,
		IPAddress:        remoteAddr,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, agerrors.Internal("create session", err)
	}

	format := client.TokenFormat
	if format == "" {
		format = domain.TokenFormatReference
	}
	metrics.RecordTokenIssued("access", format)
	metrics.RecordTokenIssued("refresh", domain.TokenFormatReference)
	metrics.RecordTokenIssued("id", domain.TokenFormatJWT)

	return &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.accessTTL.Seconds()),
		RefreshToken: refreshToken,
		IDToken:      idToken,
		Scope:        scope,
	}, nil
}

// Revoke invalidates a previously issued token (RFC 7009). The only
// observable failure is bad client credentials when a client_id is
// supplied; everything else, including an unknown token, reports success
// so callers cannot probe whether a token existed. A DELETE audit entry is
// recorded either way.
func (s *TokenService) Revoke(ctx context.Context, req *RevocationRequest) error {
	if req.ClientID != "" {
		if _, err := s.validator.Validate(ctx, req.ClientID, req.ClientSecret); err != nil {
			if agerrors.IsCode(err, agerrors.CodeInvalidClient) {
				s.recordRevocation(ctx, req, "", "invalid_client")
				return err
			}
			// Internal lookup failures still resolve to 200 per RFC 7009.
			s.logger.Error("revoke client validation error", "error", err)
			s.recordRevocation(ctx, req, "", "client validation error suppressed")
			return nil
		}
	}

	session, found := s.findSession(ctx, req.Token, req.TokenTypeHint)
	if !found {
		s.recordRevocation(ctx, req, "", "token not found")
		return nil
	}

	if err := s.sessions.Revoke(ctx, session.ID); err != nil {
		s.logger.Error("session revoke failed", "error", err, "session_id", session.ID)
		s.recordRevocation(ctx, req, session.UserID, "revoke error suppressed")
		return nil
	}

	s.recordRevocation(ctx, req, session.UserID, "")
	return nil
}

// findSession resolves a raw token to a session by access-token hash, then
// refresh-token hash, honoring the type hint for lookup order.
func (s *TokenService) findSession(ctx context.Context, token, hint string) (*domain.Session, bool) {
	hash := secrets.HashToken(token)

	lookups := []func(context.Context, string) (*domain.Session, error){
		s.sessions.GetByAccessTokenHash,
		s.sessions.GetByRefreshTokenHash,
	}
	if hint == "refresh_token" {
		lookups[0], lookups[1] = lookups[1], lookups[0]
	}

	for _, lookup := range lookups {
		if session, err := lookup(ctx, hash); err == nil {
			return session, true
		}
	}
	return nil, false
}

func (s *TokenService) recordRevocation(ctx context.Context, req *RevocationRequest, userID, note string) {
	entry := audit.Entry{
		Actor:     userID,
		Action:    domain.AuditActionDelete,
		Target:    "oauth:revoke",
		IPAddress: req.RemoteAddr,
		UserAgent: req.UserAgent,
		Metadata: map[string]string{
			"client_id": anonymizeClientID(req.ClientID),
		},
	}
	if userID == "" {
		entry.Actor = domain.AuditActorAnonymous
	}
	if note != "" {
		entry.Metadata["note"] = note
	}
	s.auditor.Record(ctx, entry)
}

// Introspect reports whether a token is active (RFC 7662). It requires
// client authentication and understands both token formats.
func (s *TokenService) Introspect(ctx context.Context, req *IntrospectionRequest) (*IntrospectionResponse, error) {
	if req.ClientID == "" {
		return nil, agerrors.InvalidClient("client authentication required")
	}
	if _, err := s.validator.Validate(ctx, req.ClientID, req.ClientSecret); err != nil {
		return nil, err
	}

	// Self-contained tokens verify offline.
	if req.TokenTypeHint == "" || req.TokenTypeHint == "access_token" {
		if claims, err := s.signer.Verify(req.Token); err == nil {
			return &IntrospectionResponse{
				Active:    true,
				Scope:     claims.Scope,
				ClientID:  claims.ClientID,
				Sub:       claims.Subject,
				Iss:       claims.Issuer,
				Aud:       claims.ClientID,
				Exp:       claims.ExpiresAt.Unix(),
				Iat:       claims.IssuedAt.Unix(),
				TokenType: "Bearer",
			}, nil
		}
	}

	// Reference tokens resolve through the session store.
	if session, found := s.findSession(ctx, req.Token, req.TokenTypeHint); found && session.IsValid() {
		resp := &IntrospectionResponse{
			Active:    true,
			Scope:     session.Scope,
			ClientID:  session.ClientID,
			Sub:       session.UserID,
			Exp:       session.ExpiresAt.Unix(),
			Iat:       session.CreatedAt.Unix(),
			TokenType: "Bearer",
		}
		if admin, err := s.admins.GetByID(ctx, session.UserID); err == nil {
			resp.Username = admin.Email
		}
		return resp, nil
	}

	return &IntrospectionResponse{Active: false}, nil
}

// parseBody normalizes JSON and form-encoded bodies into one struct. cb
// copies form values when the body was not JSON.
func parseBody(r *http.Request, dst any, cb func()) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxTokenBodySize)

	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.Contains(contentType, "application/json") {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxTokenBodySize)).Decode(dst); err != nil {
			return agerrors.InvalidInput("invalid JSON body")
		}
		return nil
	}

	if err := r.ParseForm(); err != nil {
		return agerrors.InvalidInput("invalid form data")
	}
	cb()
	return nil
}

// basicClientCredentials extracts client credentials from HTTP Basic auth.
func basicClientCredentials(r *http.Request) (id, secret string, ok bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(auth[len("Basic "):])
	if err != nil {
		return "", "", false
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// anonymizeClientID keeps a short prefix so audit entries correlate without
// recording the full identifier.
func anonymizeClientID(clientID string) string {
	if clientID == "" {
		return "-"
	}
	if len(clientID) <= 4 {
		return clientID
	}
	return clientID[:4] + "***"
}

package oauth

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/appmint/authgate/internal/domain"
	agerrors "github.com/appmint/authgate/internal/errors"
	"github.com/appmint/authgate/internal/secrets"
	"github.com/appmint/authgate/internal/store"
)

// AuthorizeRequest is a parsed authorization request.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizeService issues authorization codes bound to a client, redirect
// URI, and PKCE challenge.
type AuthorizeService struct {
	clients   store.ClientRepository
	authCodes store.AuthCodeRepository
	codeTTL   time.Duration
}

// NewAuthorizeService creates an AuthorizeService.
func NewAuthorizeService(clients store.ClientRepository, authCodes store.AuthCodeRepository, codeTTL time.Duration) *AuthorizeService {
	if codeTTL <= 0 {
		codeTTL = 10 * time.Minute
	}
	return &AuthorizeService{
		clients:   clients,
		authCodes: authCodes,
		codeTTL:   codeTTL,
	}
}

// ParseAuthorizeRequest parses and validates an authorization request.
func (s *AuthorizeService) ParseAuthorizeRequest(r *http.Request) (*AuthorizeRequest, error) {
	q := r.URL.Query()
	req := &AuthorizeRequest{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		ResponseType:        q.Get("response_type"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		Nonce:               q.Get("nonce"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}

	if req.ClientID == "" {
		return nil, agerrors.InvalidInput("client_id is required")
	}
	if req.RedirectURI == "" {
		return nil, agerrors.InvalidInput("redirect_uri is required")
	}
	if req.ResponseType != "code" {
		return nil, agerrors.InvalidInput("response_type must be 'code'")
	}

	return req, nil
}

// ValidateClient verifies the client exists, is enabled, and registered the
// requested redirect URI. Public clients must carry a PKCE challenge.
func (s *AuthorizeService) ValidateClient(ctx context.Context, req *AuthorizeRequest) (*domain.Client, error) {
	client, err := s.clients.GetByID(ctx, req.ClientID)
	if err != nil {
		if agerrors.IsCode(err, agerrors.CodeNotFound) {
			return nil, agerrors.InvalidInput("unknown client_id")
		}
		return nil, agerrors.Internal("client lookup failed", err)
	}
	if client.Disabled {
		return nil, agerrors.InvalidInput("client is disabled")
	}

	// Exact match; prefix or substring matching invites interception.
	validURI := false
	for _, uri := range client.RedirectURIs {
		if uri == req.RedirectURI {
			validURI = true
			break
		}
	}
	if !validURI {
		return nil, agerrors.InvalidInput("invalid redirect_uri")
	}

	if client.Public && req.CodeChallenge == "" {
		return nil, agerrors.InvalidInput("code_challenge is required for public clients")
	}
	if req.CodeChallengeMethod != "" &&
		req.CodeChallengeMethod != PKCEMethodPlain &&
		req.CodeChallengeMethod != PKCEMethodS256 {
		return nil, agerrors.InvalidInput("unsupported code_challenge_method")
	}

	return client, nil
}

// CreateAuthCode mints a short-lived single-use authorization code bound to
// the request's redirect URI and PKCE challenge.
func (s *AuthorizeService) CreateAuthCode(ctx context.Context, req *AuthorizeRequest, userID string) (*domain.AuthCode, error) {
	code, err := secrets.NewToken()
	if err != nil {
		return nil, agerrors.Internal("generate authorization code", err)
	}

	authCode := &domain.AuthCode{
		Code:                code,
		ClientID:            req.ClientID,
		UserID:              userID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Nonce:               req.Nonce,
		CreatedAt:           time.Now(),
		ExpiresAt:           time.Now().Add(s.codeTTL),
	}

	if err := s.authCodes.Create(ctx, authCode); err != nil {
		return nil, agerrors.Internal("store authorization code", err)
	}
	return authCode, nil
}

// BuildAuthorizationResponse builds the success redirect URL.
func (s *AuthorizeService) BuildAuthorizationResponse(redirectURI, code, state string) string {
	return buildRedirect(redirectURI, url.Values{
		"code":  {code},
		"state": {state},
	})
}

// BuildErrorResponse builds the error redirect URL.
func (s *AuthorizeService) BuildErrorResponse(redirectURI, errorCode, errorDescription, state string) string {
	return buildRedirect(redirectURI, url.Values{
		"error":             {errorCode},
		"error_description": {errorDescription},
		"state":             {state},
	})
}

func buildRedirect(redirectURI string, params url.Values) string {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return redirectURI
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			if v != "" {
				q.Set(k, v)
			}
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Package domain defines the core types for the authgate service.
package domain

import (
	"time"
)

// Token formats a client can be configured to receive from the token endpoint.
const (
	// TokenFormatReference issues opaque tokens resolved through the session
	// store. Default, used by the admin console.
	TokenFormatReference = "reference"
	// TokenFormatJWT issues self-contained RS256 tokens verifiable without a
	// store round-trip. Used by mobile identity clients.
	TokenFormatJWT = "jwt"
)

// Client represents an OAuth 2.0 / OIDC client application.
type Client struct {
	ID            string    `json:"id"`
	SecretHash    string    `json:"secret_hash,omitempty"` // Empty for public clients
	Name          string    `json:"name"`
	RedirectURIs  []string  `json:"redirect_uris"`
	Scopes        []string  `json:"scopes"`
	Public        bool      `json:"public"`       // True for public clients (PKCE required)
	TokenFormat   string    `json:"token_format"` // reference or jwt
	ApplicationID string    `json:"application_id,omitempty"`
	Disabled      bool      `json:"disabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Confidential reports whether the client must authenticate with a secret.
func (c *Client) Confidential() bool {
	return !c.Public
}

// AuthCode represents a single-use OAuth 2.0 authorization code.
type AuthCode struct {
	Code                string    `json:"code"`
	ClientID            string    `json:"client_id"`
	UserID              string    `json:"user_id"`
	RedirectURI         string    `json:"redirect_uri"`
	Scope               string    `json:"scope"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"` // plain or S256
	Nonce               string    `json:"nonce,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	ExpiresAt           time.Time `json:"expires_at"`
	Used                bool      `json:"used"`
}

// IsExpired checks if the authorization code has expired.
func (a *AuthCode) IsExpired() bool {
	return time.Now().After(a.ExpiresAt)
}

// Session represents an authenticated session bound to a user and client.
// Access and refresh tokens are stored only as SHA-256 hashes; the raw
// values are returned to the caller once at issuance.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	ClientID         string    `json:"client_id,omitempty"`
	ApplicationID    string    `json:"application_id,omitempty"`
	AccessTokenHash  string    `json:"access_token_hash"`
	RefreshTokenHash string    `json:"refresh_token_hash,omitempty"`
	Scope            string    `json:"scope,omitempty"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	UserAgent        string    `json:"user_agent,omitempty"`
	IPAddress        string    `json:"ip_address,omitempty"`
}

// IsExpired checks if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsValid checks if the session is active and not expired.
func (s *Session) IsValid() bool {
	return s.Active && !s.IsExpired()
}

// Admin represents a console administrator account.
type Admin struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash,omitempty"`
	DisplayName  string    `json:"display_name,omitempty"`
	Role         string    `json:"role"`
	Permissions  []string  `json:"permissions"`
	SuperAdmin   bool      `json:"super_admin"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Audit actions recorded by the audit sink.
const (
	AuditActionLogin  = "LOGIN"
	AuditActionFailed = "FAILED"
	AuditActionDelete = "DELETE"
)

// Audit actors used when no authenticated user is involved.
const (
	AuditActorAnonymous = "anonymous"
	AuditActorSystem    = "system"
)

// AuditEvent is one append-only record of an authentication-relevant event.
type AuditEvent struct {
	ID        string            `json:"id"`
	Actor     string            `json:"actor"` // user id, "anonymous", or "system"
	Action    string            `json:"action"`
	Target    string            `json:"target,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

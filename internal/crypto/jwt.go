package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	agerrors "github.com/appmint/authgate/internal/errors"
)

// Claims are the JWT claims authgate puts on ID tokens and signed access
// tokens.
type Claims struct {
	// Standard OIDC claims
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`

	// OAuth claims
	Scope    string `json:"scope,omitempty"`
	ClientID string `json:"client_id,omitempty"`

	// Custom claims
	Nonce string `json:"nonce,omitempty"`

	jwt.RegisteredClaims
}

// TokenSigner signs and verifies JWTs with the process-wide key.
type TokenSigner struct {
	keyPair *KeyPair
	issuer  string
}

// NewTokenSigner creates a TokenSigner.
func NewTokenSigner(keyPair *KeyPair, issuer string) *TokenSigner {
	return &TokenSigner{keyPair: keyPair, issuer: issuer}
}

// SignIDToken signs an OIDC ID token for the subject.
func (s *TokenSigner) SignIDToken(subject string, ttl time.Duration, claims *Claims) (string, time.Time, error) {
	return s.sign(subject, ttl, claims)
}

// SignAccessToken signs a self-contained access token carrying scope and
// client binding.
func (s *TokenSigner) SignAccessToken(subject string, ttl time.Duration, scope, clientID string) (string, time.Time, error) {
	return s.sign(subject, ttl, &Claims{Scope: scope, ClientID: clientID})
}

func (s *TokenSigner) sign(subject string, ttl time.Duration, claims *Claims) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	if claims == nil {
		claims = &Claims{}
	}

	audience := s.issuer
	if claims.ClientID != "" {
		audience = claims.ClientID
	}

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)), // Clock skew tolerance
		ID:        uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyPair.Kid

	signed, err := token.SignedString(s.keyPair.PrivateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a signed token. Expiry and signature failures
// come back as distinct structured codes so callers can log the real reason
// while answering with a generic unauthorized body.
func (s *TokenSigner) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("missing key ID in token header")
		}
		if kid != s.keyPair.Kid {
			return nil, fmt.Errorf("unknown key ID: %s", kid)
		}
		return s.keyPair.PublicKey, nil
	}, jwt.WithIssuer(s.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, agerrors.Wrap(err, agerrors.CodeTokenExpired, "token expired")
		}
		return nil, agerrors.Wrap(err, agerrors.CodeTokenInvalid, "token invalid")
	}
	return claims, nil
}

// KeyID returns the key ID used for signing.
func (s *TokenSigner) KeyID() string {
	return s.keyPair.Kid
}

// Package oauth implements the OAuth 2.0 token exchange, revocation, and
// introspection flows.
package oauth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// PKCE challenge methods (RFC 7636).
const (
	PKCEMethodPlain = "plain"
	PKCEMethodS256  = "S256"
)

// ValidateCodeVerifier checks a PKCE code_verifier against the challenge
// stored at authorization time. A code issued without a challenge passes
// only when no verifier is supplied; a code issued with a challenge fails
// for any verifier that does not recompute to it.
func ValidateCodeVerifier(codeVerifier, codeChallenge, codeChallengeMethod string) bool {
	if codeChallenge == "" {
		return codeVerifier == ""
	}
	if codeVerifier == "" {
		return false
	}

	switch codeChallengeMethod {
	case PKCEMethodPlain:
		return subtle.ConstantTimeCompare([]byte(codeVerifier), []byte(codeChallenge)) == 1
	case PKCEMethodS256, "":
		// S256 is the default when a challenge is present without a method.
		hash := sha256.Sum256([]byte(codeVerifier))
		computed := base64.RawURLEncoding.EncodeToString(hash[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(codeChallenge)) == 1
	default:
		return false
	}
}

package crypto

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	agerrors "github.com/appmint/authgate/internal/errors"
)

var (
	kpOnce sync.Once
	kp     *KeyPair
	kpErr  error
)

func testKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	kpOnce.Do(func() {
		kp, kpErr = GenerateKeyPair(2048)
	})
	if kpErr != nil {
		t.Fatalf("generate key pair: %v", kpErr)
	}
	return kp
}

func TestSignAndVerify(t *testing.T) {
	signer := NewTokenSigner(testKeyPair(t), "http://localhost:8080")

	token, expiresAt, err := signer.SignAccessToken("admin-1", time.Hour, "openid profile", "console")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if remaining := time.Until(expiresAt); remaining < 59*time.Minute || remaining > time.Hour {
		t.Errorf("unexpected expiry %v", expiresAt)
	}

	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "admin-1" {
		t.Errorf("subject %q, want admin-1", claims.Subject)
	}
	if claims.Scope != "openid profile" || claims.ClientID != "console" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "console" {
		t.Errorf("audience %v, want [console]", claims.Audience)
	}
	if claims.ID == "" {
		t.Error("expected jti")
	}
}

func TestVerifyExpired(t *testing.T) {
	signer := NewTokenSigner(testKeyPair(t), "http://localhost:8080")

	token, _, err := signer.SignAccessToken("admin-1", -time.Minute, "", "")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := signer.Verify(token); !agerrors.IsCode(err, agerrors.CodeTokenExpired) {
		t.Errorf("expected token_expired, got %v", err)
	}
}

func TestVerifyWrongKey(t *testing.T) {
	signer := NewTokenSigner(testKeyPair(t), "http://localhost:8080")

	other, err := GenerateKeyPair(2048)
	if err != nil {
		t.Fatalf("generate other key: %v", err)
	}
	otherSigner := NewTokenSigner(other, "http://localhost:8080")

	token, _, err := otherSigner.SignAccessToken("admin-1", time.Hour, "", "")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := signer.Verify(token); !agerrors.IsCode(err, agerrors.CodeTokenInvalid) {
		t.Errorf("expected token_invalid, got %v", err)
	}
}

func TestVerifyWrongIssuer(t *testing.T) {
	keyPair := testKeyPair(t)
	signer := NewTokenSigner(keyPair, "http://localhost:8080")
	imposter := NewTokenSigner(keyPair, "http://evil.example.com")

	token, _, err := imposter.SignAccessToken("admin-1", time.Hour, "", "")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := signer.Verify(token); !agerrors.IsCode(err, agerrors.CodeTokenInvalid) {
		t.Errorf("expected token_invalid, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	signer := NewTokenSigner(testKeyPair(t), "http://localhost:8080")
	if _, err := signer.Verify("not.a.jwt"); !agerrors.IsCode(err, agerrors.CodeTokenInvalid) {
		t.Errorf("expected token_invalid, got %v", err)
	}
}

func TestToJWK(t *testing.T) {
	keyPair := testKeyPair(t)
	jwk := keyPair.ToJWK()

	if jwk.Kty != "RSA" || jwk.Use != "sig" || jwk.Alg != "RS256" {
		t.Errorf("unexpected JWK metadata: %+v", jwk)
	}
	if jwk.Kid != keyPair.Kid {
		t.Errorf("kid %q, want %q", jwk.Kid, keyPair.Kid)
	}
	if _, err := base64.RawURLEncoding.DecodeString(jwk.N); err != nil {
		t.Errorf("modulus not base64url: %v", err)
	}
	if _, err := base64.RawURLEncoding.DecodeString(jwk.E); err != nil {
		t.Errorf("exponent not base64url: %v", err)
	}
}

func TestLoadOrGenerateRoundTrip(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrGenerate(dir)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, first.Kid+".pem")); err != nil {
		t.Fatalf("key file missing: %v", err)
	}

	// A second load returns the same key under the same kid.
	second, err := LoadOrGenerate(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if second.Kid != first.Kid {
		t.Errorf("kid changed across loads: %q vs %q", second.Kid, first.Kid)
	}
	if second.PublicKey.N.Cmp(first.PublicKey.N) != 0 {
		t.Error("public key changed across loads")
	}
}

package oauth

import "testing"

func TestValidateCodeVerifierS256(t *testing.T) {
	// Verifier and challenge from RFC 7636 appendix B.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	if !ValidateCodeVerifier(verifier, challenge, PKCEMethodS256) {
		t.Error("RFC 7636 test vector should validate")
	}
	if !ValidateCodeVerifier(verifier, challenge, "") {
		t.Error("S256 should be the default method when a challenge is present")
	}
	if ValidateCodeVerifier("wrong-verifier-wrong-verifier-wrong-verifier", challenge, PKCEMethodS256) {
		t.Error("wrong verifier should fail")
	}
	if ValidateCodeVerifier("", challenge, PKCEMethodS256) {
		t.Error("empty verifier should fail when a challenge was stored")
	}
}

func TestValidateCodeVerifierPlain(t *testing.T) {
	if !ValidateCodeVerifier("some-verifier", "some-verifier", PKCEMethodPlain) {
		t.Error("matching plain verifier should validate")
	}
	if ValidateCodeVerifier("some-verifier", "other-verifier", PKCEMethodPlain) {
		t.Error("mismatched plain verifier should fail")
	}
}

func TestValidateCodeVerifierNoChallenge(t *testing.T) {
	if !ValidateCodeVerifier("", "", "") {
		t.Error("no challenge and no verifier should validate")
	}
	if ValidateCodeVerifier("unexpected-verifier", "", "") {
		t.Error("verifier without a stored challenge should fail")
	}
}

func TestValidateCodeVerifierUnknownMethod(t *testing.T) {
	if ValidateCodeVerifier("v", "v", "S512") {
		t.Error("unknown challenge method should fail")
	}
}

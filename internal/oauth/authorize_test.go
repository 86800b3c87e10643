package oauth

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/appmint/authgate/internal/domain"
	agerrors "github.com/appmint/authgate/internal/errors"
	"github.com/appmint/authgate/internal/store/memory"
)

func newAuthorizeFixture(t *testing.T) (*AuthorizeService, *memory.Store) {
	t.Helper()
	st := memory.NewStore(10*time.Minute, time.Hour)
	return NewAuthorizeService(st.Clients(), st.AuthCodes(), 10*time.Minute), st
}

func seedAuthorizeClient(t *testing.T, st *memory.Store, public bool) {
	t.Helper()
	client := &domain.Client{
		ID:           "console",
		RedirectURIs: []string{"https://console.example.com/callback"},
		Public:       public,
		TokenFormat:  domain.TokenFormatReference,
	}
	if !public {
		client.SecretHash = "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"
	}
	if err := st.Clients().Create(context.Background(), client); err != nil {
		t.Fatalf("seed client: %v", err)
	}
}

func TestParseAuthorizeRequest(t *testing.T) {
	svc, _ := newAuthorizeFixture(t)

	r := httptest.NewRequest("GET", "/oauth/authorize?response_type=code&client_id=console&redirect_uri=https%3A%2F%2Fconsole.example.com%2Fcallback&scope=openid&state=xyz&code_challenge=abc&code_challenge_method=S256", nil)
	req, err := svc.ParseAuthorizeRequest(r)
	if err != nil {
		t.Fatalf("ParseAuthorizeRequest failed: %v", err)
	}
	if req.ClientID != "console" || req.State != "xyz" || req.CodeChallenge != "abc" || req.CodeChallengeMethod != "S256" {
		t.Errorf("unexpected parse result: %+v", req)
	}

	bad := []string{
		"/oauth/authorize?response_type=code&redirect_uri=https://x/cb",            // missing client_id
		"/oauth/authorize?response_type=code&client_id=console",                    // missing redirect_uri
		"/oauth/authorize?response_type=token&client_id=console&redirect_uri=u",    // wrong response_type
		"/oauth/authorize?client_id=console&redirect_uri=https://x/cb",             // missing response_type
	}
	for _, target := range bad {
		if _, err := svc.ParseAuthorizeRequest(httptest.NewRequest("GET", target, nil)); err == nil {
			t.Errorf("expected error for %s", target)
		}
	}
}

func TestAuthorizeValidateClient(t *testing.T) {
	svc, st := newAuthorizeFixture(t)
	seedAuthorizeClient(t, st, false)

	base := &AuthorizeRequest{
		ClientID:     "console",
		RedirectURI:  "https://console.example.com/callback",
		ResponseType: "code",
	}
	if _, err := svc.ValidateClient(context.Background(), base); err != nil {
		t.Fatalf("ValidateClient failed: %v", err)
	}

	unknown := *base
	unknown.ClientID = "ghost"
	if _, err := svc.ValidateClient(context.Background(), &unknown); err == nil {
		t.Error("unknown client should fail")
	}

	badURI := *base
	badURI.RedirectURI = "https://console.example.com/callback/extra"
	if _, err := svc.ValidateClient(context.Background(), &badURI); err == nil {
		t.Error("redirect URI matching must be exact")
	}

	badMethod := *base
	badMethod.CodeChallenge = "abc"
	badMethod.CodeChallengeMethod = "S512"
	if _, err := svc.ValidateClient(context.Background(), &badMethod); err == nil {
		t.Error("unsupported challenge method should fail")
	}
}

func TestAuthorizePublicClientRequiresPKCE(t *testing.T) {
	svc, st := newAuthorizeFixture(t)
	seedAuthorizeClient(t, st, true)

	req := &AuthorizeRequest{
		ClientID:     "console",
		RedirectURI:  "https://console.example.com/callback",
		ResponseType: "code",
	}
	_, err := svc.ValidateClient(context.Background(), req)
	if err == nil {
		t.Fatal("public client without code_challenge should fail")
	}
	if !agerrors.IsCode(err, agerrors.CodeInvalidInput) {
		t.Errorf("expected invalid_input, got %v", err)
	}

	req.CodeChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	req.CodeChallengeMethod = "S256"
	if _, err := svc.ValidateClient(context.Background(), req); err != nil {
		t.Errorf("public client with challenge should pass: %v", err)
	}
}

func TestCreateAuthCode(t *testing.T) {
	svc, st := newAuthorizeFixture(t)
	seedAuthorizeClient(t, st, false)

	req := &AuthorizeRequest{
		ClientID:            "console",
		RedirectURI:         "https://console.example.com/callback",
		ResponseType:        "code",
		Scope:               "openid profile",
		Nonce:               "n-0S6_WzA2Mj",
		CodeChallenge:       "abc",
		CodeChallengeMethod: "S256",
	}

	code, err := svc.CreateAuthCode(context.Background(), req, "admin-1")
	if err != nil {
		t.Fatalf("CreateAuthCode failed: %v", err)
	}
	if code.Code == "" {
		t.Fatal("expected a code value")
	}
	if code.Used {
		t.Error("new code should be unused")
	}
	if code.UserID != "admin-1" || code.ClientID != "console" || code.Nonce != "n-0S6_WzA2Mj" {
		t.Errorf("code bindings wrong: %+v", code)
	}
	if !code.ExpiresAt.After(time.Now().Add(9 * time.Minute)) {
		t.Errorf("code should live about ten minutes, expires %v", code.ExpiresAt)
	}

	stored, err := st.AuthCodes().GetByCode(context.Background(), code.Code)
	if err != nil {
		t.Fatalf("stored code lookup failed: %v", err)
	}
	if stored.CodeChallenge != "abc" {
		t.Errorf("stored challenge %q, want abc", stored.CodeChallenge)
	}
}

func TestBuildRedirects(t *testing.T) {
	svc, _ := newAuthorizeFixture(t)

	target := svc.BuildAuthorizationResponse("https://app.example.com/cb?keep=1", "the-code", "the-state")
	u, err := url.Parse(target)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	q := u.Query()
	if q.Get("code") != "the-code" || q.Get("state") != "the-state" || q.Get("keep") != "1" {
		t.Errorf("unexpected redirect query: %s", target)
	}

	errTarget := svc.BuildErrorResponse("https://app.example.com/cb", "access_denied", "", "s1")
	if !strings.Contains(errTarget, "error=access_denied") || !strings.Contains(errTarget, "state=s1") {
		t.Errorf("unexpected error redirect: %s", errTarget)
	}
	if strings.Contains(errTarget, "error_description") {
		t.Errorf("empty description should be omitted: %s", errTarget)
	}
}

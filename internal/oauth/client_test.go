package oauth

import (
	"context"
	"testing"
	"time"

	"github.com/appmint/authgate/internal/domain"
	agerrors "github.com/appmint/authgate/internal/errors"
	"github.com/appmint/authgate/internal/secrets"
	"github.com/appmint/authgate/internal/store/memory"
)

func newValidator(t *testing.T) (*ClientValidator, *memory.Store) {
	t.Helper()
	st := memory.NewStore(10*time.Minute, time.Hour)

	hash, err := secrets.Hash("console-secret")
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	clients := []*domain.Client{
		{
			ID:           "console",
			SecretHash:   hash,
			RedirectURIs: []string{"https://console.example.com/callback"},
			TokenFormat:  domain.TokenFormatReference,
		},
		{
			ID:           "spa",
			Public:       true,
			RedirectURIs: []string{"https://spa.example.com/cb"},
		},
		{
			ID:         "retired",
			SecretHash: hash,
			Disabled:   true,
		},
	}
	for _, c := range clients {
		if err := st.Clients().Create(context.Background(), c); err != nil {
			t.Fatalf("seed client %s: %v", c.ID, err)
		}
	}
	return NewClientValidator(st.Clients()), st
}

func TestValidateClientCredentials(t *testing.T) {
	v, _ := newValidator(t)
	ctx := context.Background()

	client, err := v.Validate(ctx, "console", "console-secret")
	if err != nil {
		t.Fatalf("valid credentials rejected: %v", err)
	}
	if client.ID != "console" {
		t.Errorf("got client %q, want console", client.ID)
	}

	// Public clients authenticate without a secret; PKCE binds them later.
	client, err = v.Validate(ctx, "spa", "")
	if err != nil {
		t.Fatalf("public client rejected: %v", err)
	}
	if !client.Public {
		t.Error("expected public client")
	}

	if _, err := v.Validate(ctx, "", ""); !agerrors.IsCode(err, agerrors.CodeInvalidInput) {
		t.Errorf("missing client_id: got %v", err)
	}
}

func TestValidateClientFailuresIndistinct(t *testing.T) {
	v, _ := newValidator(t)
	ctx := context.Background()

	// Unknown, disabled, secret-less, and wrong-secret clients all collapse
	// into one invalid_client error so callers cannot probe for existence.
	tests := []struct {
		name   string
		id     string
		secret string
	}{
		{"unknown client", "nobody", "console-secret"},
		{"disabled client", "retired", "console-secret"},
		{"missing secret", "console", ""},
		{"wrong secret", "console", "not-the-secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(ctx, tt.id, tt.secret)
			if !agerrors.IsCode(err, agerrors.CodeInvalidClient) {
				t.Errorf("expected invalid_client, got %v", err)
			}
			if msg := agerrors.Message(err, ""); msg != "client authentication failed" {
				t.Errorf("failure message should not vary, got %q", msg)
			}
		})
	}
}

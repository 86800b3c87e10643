package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/appmint/authgate/internal/config"
	"github.com/appmint/authgate/internal/domain"
	"github.com/appmint/authgate/internal/secrets"
	"github.com/appmint/authgate/internal/store/memory"
)

func TestSeed(t *testing.T) {
	st := memory.NewStore(10*time.Minute, time.Hour)
	cfg := &config.Config{
		BootstrapAdmins:  "root@example.com:root-password",
		BootstrapClients: "console|console-secret||https://console.example.com/callback",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := Seed(context.Background(), cfg, st, logger); err != nil {
		t.Fatalf("seed: %v", err)
	}

	admin, err := st.Admins().GetByEmail(context.Background(), "root@example.com")
	if err != nil {
		t.Fatalf("admin not seeded: %v", err)
	}
	if !admin.Active {
		t.Error("seeded admin should be active")
	}
	// No role, no permissions: the entry becomes the super admin.
	if !admin.SuperAdmin {
		t.Error("expected super admin")
	}
	if ok, err := secrets.Verify("root-password", admin.PasswordHash); err != nil || !ok {
		t.Errorf("seeded password does not verify: %v", err)
	}

	client, err := st.Clients().GetByID(context.Background(), "console")
	if err != nil {
		t.Fatalf("client not seeded: %v", err)
	}
	if client.Public {
		t.Error("client with a secret should be confidential")
	}
	if client.TokenFormat != domain.TokenFormatReference {
		t.Errorf("token format %q, want default reference", client.TokenFormat)
	}
	if len(client.RedirectURIs) != 1 || client.RedirectURIs[0] != "https://console.example.com/callback" {
		t.Errorf("redirect URIs %v", client.RedirectURIs)
	}
}

func TestSeedRoleAndPermissions(t *testing.T) {
	st := memory.NewStore(10*time.Minute, time.Hour)
	cfg := &config.Config{
		BootstrapAdmins: "ops@example.com:ops-password:operator:auth:read;auth:delete",
	}

	if err := Seed(context.Background(), cfg, st, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	admin, err := st.Admins().GetByEmail(context.Background(), "ops@example.com")
	if err != nil {
		t.Fatalf("admin not seeded: %v", err)
	}
	if admin.SuperAdmin {
		t.Error("scoped admin must not be super admin")
	}
	if admin.Role != "operator" {
		t.Errorf("role %q, want operator", admin.Role)
	}
	if len(admin.Permissions) != 2 || admin.Permissions[0] != "auth:read" || admin.Permissions[1] != "auth:delete" {
		t.Errorf("permissions %v", admin.Permissions)
	}
}

func TestSeedPublicClient(t *testing.T) {
	st := memory.NewStore(10*time.Minute, time.Hour)
	cfg := &config.Config{
		BootstrapClients: "spa||jwt|https://spa.example.com/cb https://spa.example.com/cb2",
	}

	if err := Seed(context.Background(), cfg, st, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	client, err := st.Clients().GetByID(context.Background(), "spa")
	if err != nil {
		t.Fatalf("client not seeded: %v", err)
	}
	if !client.Public {
		t.Error("client without a secret should be public")
	}
	if client.SecretHash != "" {
		t.Error("public client must not carry a secret hash")
	}
	if client.TokenFormat != domain.TokenFormatJWT {
		t.Errorf("token format %q, want jwt", client.TokenFormat)
	}
	if len(client.RedirectURIs) != 2 {
		t.Errorf("redirect URIs %v", client.RedirectURIs)
	}
}

func TestSeedIdempotent(t *testing.T) {
	st := memory.NewStore(10*time.Minute, time.Hour)
	cfg := &config.Config{
		BootstrapAdmins:  "root@example.com:root-password",
		BootstrapClients: "console|console-secret||https://console.example.com/callback",
	}

	if err := Seed(context.Background(), cfg, st, nil); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	first, err := st.Admins().GetByEmail(context.Background(), "root@example.com")
	if err != nil {
		t.Fatalf("get admin: %v", err)
	}

	// A second boot with the same config leaves existing rows alone.
	if err := Seed(context.Background(), cfg, st, nil); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	second, err := st.Admins().GetByEmail(context.Background(), "root@example.com")
	if err != nil {
		t.Fatalf("get admin again: %v", err)
	}
	if second.ID != first.ID || second.PasswordHash != first.PasswordHash {
		t.Error("reseed must not replace the existing admin")
	}

	admins, err := st.Admins().List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(admins) != 1 {
		t.Errorf("expected one admin after reseed, got %d", len(admins))
	}
}

// Package bootstrap seeds admin accounts and OAuth clients from
// configuration on startup. Existing records are left untouched so the
// seed is safe to run on every boot.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/appmint/authgate/internal/config"
	"github.com/appmint/authgate/internal/domain"
	agerrors "github.com/appmint/authgate/internal/errors"
	"github.com/appmint/authgate/internal/secrets"
	"github.com/appmint/authgate/internal/store"
)

// Seed creates the configured bootstrap admins and clients.
func Seed(ctx context.Context, cfg *config.Config, st store.Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for _, a := range cfg.ParseBootstrapAdmins() {
		if err := seedAdmin(ctx, st, a, logger); err != nil {
			return err
		}
	}
	for _, c := range cfg.ParseBootstrapClients() {
		if err := seedClient(ctx, st, c, logger); err != nil {
			return err
		}
	}
	return nil
}

func seedAdmin(ctx context.Context, st store.Store, a config.BootstrapAdmin, logger *slog.Logger) error {
	_, err := st.Admins().GetByEmail(ctx, a.Email)
	if err == nil {
		return nil
	}
	if !agerrors.IsCode(err, agerrors.CodeNotFound) {
		return fmt.Errorf("bootstrap admin lookup %s: %w", a.Email, err)
	}

	hash, err := secrets.Hash(a.Password)
	if err != nil {
		return fmt.Errorf("bootstrap admin %s: %w", a.Email, err)
	}

	now := time.Now()
	admin := &domain.Admin{
		ID:           uuid.NewString(),
		Email:        a.Email,
		PasswordHash: hash,
		Role:         a.Role,
		Permissions:  a.Permissions,
		// Entries with no role and no permissions become super admins.
		SuperAdmin: a.Role == "" && len(a.Permissions) == 0,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := st.Admins().Create(ctx, admin); err != nil {
		return fmt.Errorf("bootstrap admin %s: %w", a.Email, err)
	}

	logger.Info("bootstrapped admin", "email", a.Email, "role", admin.Role, "super_admin", admin.SuperAdmin)
	return nil
}

func seedClient(ctx context.Context, st store.Store, c config.BootstrapClient, logger *slog.Logger) error {
	_, err := st.Clients().GetByID(ctx, c.ID)
	if err == nil {
		return nil
	}
	if !agerrors.IsCode(err, agerrors.CodeNotFound) {
		return fmt.Errorf("bootstrap client lookup %s: %w", c.ID, err)
	}

	var secretHash string
	if c.Secret != "" {
		secretHash, err = secrets.Hash(c.Secret)
		if err != nil {
			return fmt.Errorf("bootstrap client %s: %w", c.ID, err)
		}
	}

	format := c.TokenFormat
	if format == "" {
		format = domain.TokenFormatReference
	}

	now := time.Now()
	client := &domain.Client{
		ID:           c.ID,
		SecretHash:   secretHash,
		RedirectURIs: c.RedirectURIs,
		Public:       c.Public,
		TokenFormat:  format,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := st.Clients().Create(ctx, client); err != nil {
		return fmt.Errorf("bootstrap client %s: %w", c.ID, err)
	}

	logger.Info("bootstrapped client", "client_id", c.ID, "public", c.Public, "token_format", format)
	return nil
}

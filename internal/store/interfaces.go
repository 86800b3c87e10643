// Package store defines repository interfaces for persistence.
package store

import (
	"context"

	"github.com/appmint/authgate/internal/domain"
)

// AdminRepository defines operations for admin account persistence.
type AdminRepository interface {
	Create(ctx context.Context, admin *domain.Admin) error
	GetByID(ctx context.Context, id string) (*domain.Admin, error)
	GetByEmail(ctx context.Context, email string) (*domain.Admin, error)
	Update(ctx context.Context, admin *domain.Admin) error
	List(ctx context.Context) ([]*domain.Admin, error)
}

// ClientRepository defines operations for OAuth client persistence.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id string) (*domain.Client, error)
	Update(ctx context.Context, client *domain.Client) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*domain.Client, error)
}

// AuthCodeRepository defines operations for authorization code persistence.
type AuthCodeRepository interface {
	Create(ctx context.Context, code *domain.AuthCode) error
	GetByCode(ctx context.Context, code string) (*domain.AuthCode, error)
	// Consume atomically marks the code used. It returns a not found error
	// when the code does not exist or was already consumed, so a race
	// between two redemptions yields exactly one winner.
	Consume(ctx context.Context, code string) error
	DeleteExpired(ctx context.Context) error
}

// SessionRepository defines operations for session persistence.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetByAccessTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	// Revoke marks the session inactive. Revoking an unknown or already
	// inactive session is not an error.
	Revoke(ctx context.Context, id string) error
	TouchActivity(ctx context.Context, id string) error
	List(ctx context.Context, userID string) ([]*domain.Session, error)
	DeleteExpired(ctx context.Context) error
}

// AuditRepository defines append-only persistence of audit events.
type AuditRepository interface {
	Append(ctx context.Context, event *domain.AuditEvent) error
	List(ctx context.Context, limit int) ([]*domain.AuditEvent, error)
}

// Store aggregates all repositories.
type Store interface {
	Admins() AdminRepository
	Clients() ClientRepository
	AuthCodes() AuthCodeRepository
	Sessions() SessionRepository
	Audit() AuditRepository
	Close() error
}

package authn

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/appmint/authgate/internal/audit"
	"github.com/appmint/authgate/internal/domain"
	agerrors "github.com/appmint/authgate/internal/errors"
	"github.com/appmint/authgate/internal/secrets"
	"github.com/appmint/authgate/internal/store"
)

// LoginService authenticates admin credentials and mints console sessions
// backed by opaque reference tokens.
type LoginService struct {
	admins     store.AdminRepository
	sessions   store.SessionRepository
	auditor    *audit.Recorder
	logger     *slog.Logger
	sessionTTL time.Duration
}

// NewLoginService creates a LoginService.
func NewLoginService(admins store.AdminRepository, sessions store.SessionRepository, auditor *audit.Recorder, logger *slog.Logger, sessionTTL time.Duration) *LoginService {
	if logger == nil {
		logger = slog.Default()
	}
	if sessionTTL <= 0 {
		sessionTTL = 7 * 24 * time.Hour
	}
	return &LoginService{
		admins:     admins,
		sessions:   sessions,
		auditor:    auditor,
		logger:     logger,
		sessionTTL: sessionTTL,
	}
}

// LoginResult is the outcome of a successful credential login.
type LoginResult struct {
	Session     *domain.Session
	AccessToken string
	Admin       *domain.Admin
}

// Login verifies credentials and creates a session. On failure the
// returned error carries an internal reason; the caller answers with a
// generic message so the response never reveals whether the account
// exists.
func (s *LoginService) Login(ctx context.Context, email, password, remoteAddr, userAgent string) (*LoginResult, error) {
	result, err := s.login(ctx, email, password, remoteAddr, userAgent)

	entry := audit.Entry{
		Target:    "session",
		IPAddress: remoteAddr,
		UserAgent: userAgent,
	}
	if err != nil {
		entry.Action = domain.AuditActionFailed
		entry.Metadata = map[string]string{"email": email, "error": agerrors.Message(err, "login failed")}
	} else {
		entry.Action = domain.AuditActionLogin
		entry.Actor = result.Admin.ID
	}
	s.auditor.Record(ctx, entry)

	return result, err
}

func (s *LoginService) login(ctx context.Context, email, password, remoteAddr, userAgent string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, agerrors.InvalidInput("email and password are required")
	}

	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		if agerrors.IsCode(err, agerrors.CodeNotFound) {
			// Burn a hash comparison so unknown accounts cost the same.
			secrets.Verify(password, dummyHash)
			return nil, agerrors.Unauthorized("unknown email")
		}
		return nil, agerrors.Internal("admin lookup failed", err)
	}
	if !admin.Active {
		return nil, agerrors.Unauthorized("account disabled")
	}
	if ok, verr := secrets.Verify(password, admin.PasswordHash); verr != nil || !ok {
		return nil, agerrors.Unauthorized("wrong password")
	}

	token, err := secrets.NewToken()
	if err != nil {
		return nil, agerrors.Internal("failed to generate session token", err)
	}

	now := time.Now()
	session := &domain.Session{
		ID:              uuid.NewString(),
		UserID:          admin.ID,
		AccessTokenHash: secrets.HashToken(token),
		Active:          true,
		IPAddress:       remoteAddr,
		UserAgent:       userAgent,
		CreatedAt:       now,
		LastActivityAt:  now,
		ExpiresAt:       now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, agerrors.Internal("failed to persist session", err)
	}

	s.logger.Info("admin login", "admin_id", admin.ID)
	return &LoginResult{Session: session, AccessToken: token, Admin: admin}, nil
}

// Logout revokes the session behind the presented identity. Revoking an
// already-revoked session is a no-op.
func (s *LoginService) Logout(ctx context.Context, identity *Identity, remoteAddr, userAgent string) error {
	if identity.SessionID == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, identity.SessionID); err != nil {
		return agerrors.Internal("failed to revoke session", err)
	}

	s.auditor.Record(ctx, audit.Entry{
		Actor:     identity.ID,
		Action:    domain.AuditActionDelete,
		Target:    "session:" + identity.SessionID,
		IPAddress: remoteAddr,
		UserAgent: userAgent,
	})
	return nil
}

// dummyHash keeps login timing uniform for unknown accounts.
var dummyHash = func() string {
	h, _ := secrets.Hash("timing-equalizer")
	return h
}()

// Package postgres implements the store interfaces on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appmint/authgate/internal/domain"
	agerrors "github.com/appmint/authgate/internal/errors"
	"github.com/appmint/authgate/internal/store"
)

// Store implements store.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool

	admins  *adminRepository
	clients *clientRepository
	codes   *authCodeRepository
	session *sessionRepository
	audit   *auditRepository
}

// NewStore connects to PostgreSQL and returns a Store. The pool carries the
// per-call timeout; callers pass request contexts to every method.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool}
	s.admins = &adminRepository{pool: pool}
	s.clients = &clientRepository{pool: pool}
	s.codes = &authCodeRepository{pool: pool}
	s.session = &sessionRepository{pool: pool}
	s.audit = &auditRepository{pool: pool}
	return s, nil
}

func (s *Store) Admins() store.AdminRepository       { return s.admins }
func (s *Store) Clients() store.ClientRepository     { return s.clients }
func (s *Store) AuthCodes() store.AuthCodeRepository { return s.codes }
func (s *Store) Sessions() store.SessionRepository   { return s.session }
func (s *Store) Audit() store.AuditRepository        { return s.audit }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Admin repository

type adminRepository struct {
	pool *pgxpool.Pool
}

func (r *adminRepository) Create(ctx context.Context, admin *domain.Admin) error {
	query := `
		INSERT INTO admins (id, email, password_hash, display_name, role, permissions, super_admin, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		admin.ID, admin.Email, admin.PasswordHash, admin.DisplayName,
		admin.Role, admin.Permissions, admin.SuperAdmin, admin.Active,
	).Scan(&admin.CreatedAt, &admin.UpdatedAt)
	if err != nil {
		return agerrors.Internal("create admin", err)
	}
	return nil
}

const adminColumns = `id, email, password_hash, display_name, role, permissions, super_admin, active, created_at, updated_at`

func scanAdmin(row pgx.Row) (*domain.Admin, error) {
	var a domain.Admin
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName,
		&a.Role, &a.Permissions, &a.SuperAdmin, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *adminRepository) GetByID(ctx context.Context, id string) (*domain.Admin, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id)
	a, err := scanAdmin(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, agerrors.NotFound("admin", id)
	}
	if err != nil {
		return nil, agerrors.Internal("get admin", err)
	}
	return a, nil
}

func (r *adminRepository) GetByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE email = $1`, email)
	a, err := scanAdmin(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, agerrors.NotFound("admin", email)
	}
	if err != nil {
		return nil, agerrors.Internal("get admin by email", err)
	}
	return a, nil
}

func (r *adminRepository) Update(ctx context.Context, admin *domain.Admin) error {
	query := `
		UPDATE admins
		SET email = $2, password_hash = $3, display_name = $4, role = $5,
			permissions = $6, super_admin = $7, active = $8, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		admin.ID, admin.Email, admin.PasswordHash, admin.DisplayName,
		admin.Role, admin.Permissions, admin.SuperAdmin, admin.Active)
	if err != nil {
		return agerrors.Internal("update admin", err)
	}
	if tag.RowsAffected() == 0 {
		return agerrors.NotFound("admin", admin.ID)
	}
	return nil
}

func (r *adminRepository) List(ctx context.Context) ([]*domain.Admin, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+adminColumns+` FROM admins ORDER BY email`)
	if err != nil {
		return nil, agerrors.Internal("list admins", err)
	}
	defer rows.Close()

	var admins []*domain.Admin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, agerrors.Internal("scan admin", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

// Client repository

type clientRepository struct {
	pool *pgxpool.Pool
}

const clientColumns = `id, secret_hash, name, redirect_uris, scopes, public, token_format, application_id, disabled, created_at, updated_at`

func scanClient(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	err := row.Scan(&c.ID, &c.SecretHash, &c.Name, &c.RedirectURIs, &c.Scopes,
		&c.Public, &c.TokenFormat, &c.ApplicationID, &c.Disabled, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	query := `
		INSERT INTO oauth_clients (id, secret_hash, name, redirect_uris, scopes, public, token_format, application_id, disabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		client.ID, client.SecretHash, client.Name, client.RedirectURIs, client.Scopes,
		client.Public, client.TokenFormat, client.ApplicationID, client.Disabled,
	).Scan(&client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		return agerrors.Internal("create client", err)
	}
	return nil
}

func (r *clientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM oauth_clients WHERE id = $1`, id)
	c, err := scanClient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, agerrors.NotFound("client", id)
	}
	if err != nil {
		return nil, agerrors.Internal("get client", err)
	}
	return c, nil
}

func (r *clientRepository) Update(ctx context.Context, client *domain.Client) error {
	query := `
		UPDATE oauth_clients
		SET secret_hash = $2, name = $3, redirect_uris = $4, scopes = $5,
			public = $6, token_format = $7, application_id = $8, disabled = $9, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		client.ID, client.SecretHash, client.Name, client.RedirectURIs, client.Scopes,
		client.Public, client.TokenFormat, client.ApplicationID, client.Disabled)
	if err != nil {
		return agerrors.Internal("update client", err)
	}
	if tag.RowsAffected() == 0 {
		return agerrors.NotFound("client", client.ID)
	}
	return nil
}

func (r *clientRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM oauth_clients WHERE id = $1`, id)
	if err != nil {
		return agerrors.Internal("delete client", err)
	}
	if tag.RowsAffected() == 0 {
		return agerrors.NotFound("client", id)
	}
	return nil
}

func (r *clientRepository) List(ctx context.Context) ([]*domain.Client, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+clientColumns+` FROM oauth_clients ORDER BY id`)
	if err != nil {
		return nil, agerrors.Internal("list clients", err)
	}
	defer rows.Close()

	var clients []*domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, agerrors.Internal("scan client", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// AuthCode repository

type authCodeRepository struct {
	pool *pgxpool.Pool
}

func (r *authCodeRepository) Create(ctx context.Context, code *domain.AuthCode) error {
	query := `
		INSERT INTO auth_codes (code, client_id, user_id, redirect_uri, scope, code_challenge, code_challenge_method, nonce, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, NOW())
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		code.Code, code.ClientID, code.UserID, code.RedirectURI, code.Scope,
		code.CodeChallenge, code.CodeChallengeMethod, code.Nonce, code.ExpiresAt,
	).Scan(&code.CreatedAt)
	if err != nil {
		return agerrors.Internal("create auth code", err)
	}
	return nil
}

func (r *authCodeRepository) GetByCode(ctx context.Context, code string) (*domain.AuthCode, error) {
	query := `
		SELECT code, client_id, user_id, redirect_uri, scope, code_challenge, code_challenge_method, nonce, created_at, expires_at, used
		FROM auth_codes WHERE code = $1
	`
	var c domain.AuthCode
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&c.Code, &c.ClientID, &c.UserID, &c.RedirectURI, &c.Scope,
		&c.CodeChallenge, &c.CodeChallengeMethod, &c.Nonce, &c.CreatedAt, &c.ExpiresAt, &c.Used)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, agerrors.NotFound("auth code", code)
	}
	if err != nil {
		return nil, agerrors.Internal("get auth code", err)
	}
	return &c, nil
}

// Consume is a single conditional update: at most one concurrent caller
// observes used=false and flips it.
func (r *authCodeRepository) Consume(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE auth_codes SET used = true WHERE code = $1 AND used = false`, code)
	if err != nil {
		return agerrors.Internal("consume auth code", err)
	}
	if tag.RowsAffected() == 0 {
		return agerrors.NotFound("auth code", code)
	}
	return nil
}

func (r *authCodeRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM auth_codes WHERE expires_at < NOW()`)
	if err != nil {
		return agerrors.Internal("delete expired auth codes", err)
	}
	return nil
}

// Session repository

type sessionRepository struct {
	pool *pgxpool.Pool
}

const sessionColumns = `id, user_id, client_id, application_id, access_token_hash, refresh_token_hash, scope, active, created_at, expires_at, last_activity_at, user_agent, ip_address`

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.ClientID, &s.ApplicationID,
		&s.AccessTokenHash, &s.RefreshTokenHash, &s.Scope, &s.Active,
		&s.CreatedAt, &s.ExpiresAt, &s.LastActivityAt, &s.UserAgent, &s.IPAddress)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, client_id, application_id, access_token_hash, refresh_token_hash, scope, active, created_at, expires_at, last_activity_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), $9, NOW(), $10, $11)
		RETURNING created_at, last_activity_at
	`
	err := r.pool.QueryRow(ctx, query,
		session.ID, session.UserID, session.ClientID, session.ApplicationID,
		session.AccessTokenHash, session.RefreshTokenHash, session.Scope, session.Active,
		session.ExpiresAt, session.UserAgent, session.IPAddress,
	).Scan(&session.CreatedAt, &session.LastActivityAt)
	if err != nil {
		return agerrors.Internal("create session", err)
	}
	return nil
}

func (r *sessionRepository) getBy(ctx context.Context, where string, arg any) (*domain.Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE `+where, arg)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, agerrors.NotFound("session", fmt.Sprint(arg))
	}
	if err != nil {
		return nil, agerrors.Internal("get session", err)
	}
	return s, nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	return r.getBy(ctx, `id = $1`, id)
}

func (r *sessionRepository) GetByAccessTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	return r.getBy(ctx, `access_token_hash = $1`, hash)
}

func (r *sessionRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	return r.getBy(ctx, `refresh_token_hash = $1 AND refresh_token_hash <> ''`, hash)
}

func (r *sessionRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET active = false WHERE id = $1`, id)
	if err != nil {
		return agerrors.Internal("revoke session", err)
	}
	return nil
}

func (r *sessionRepository) TouchActivity(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sessions SET last_activity_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return agerrors.Internal("touch session", err)
	}
	if tag.RowsAffected() == 0 {
		return agerrors.NotFound("session", id)
	}
	return nil
}

func (r *sessionRepository) List(ctx context.Context, userID string) ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, agerrors.Internal("list sessions", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, agerrors.Internal("scan session", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		return agerrors.Internal("delete expired sessions", err)
	}
	return nil
}

// Audit repository

type auditRepository struct {
	pool *pgxpool.Pool
}

func (r *auditRepository) Append(ctx context.Context, event *domain.AuditEvent) error {
	query := `
		INSERT INTO audit_events (id, actor, action, target, metadata, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		event.ID, event.Actor, event.Action, event.Target, event.Metadata,
		event.IPAddress, event.UserAgent,
	).Scan(&event.CreatedAt)
	if err != nil {
		return agerrors.Internal("append audit event", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, limit int) ([]*domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, actor, action, target, metadata, ip_address, user_agent, created_at
		FROM audit_events ORDER BY created_at DESC LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, agerrors.Internal("list audit events", err)
	}
	defer rows.Close()

	var events []*domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Target, &e.Metadata,
			&e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, agerrors.Internal("scan audit event", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

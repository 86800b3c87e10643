package postgres

import (
	"context"

	agerrors "github.com/appmint/authgate/internal/errors"
)

// schema is applied on startup. Statements are idempotent so repeated boots
// against the same database are safe.
const schema = `
CREATE TABLE IF NOT EXISTS admins (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	display_name  TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL DEFAULT '',
	permissions   TEXT[] NOT NULL DEFAULT '{}',
	super_admin   BOOLEAN NOT NULL DEFAULT false,
	active        BOOLEAN NOT NULL DEFAULT true,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS oauth_clients (
	id             TEXT PRIMARY KEY,
	secret_hash    TEXT NOT NULL DEFAULT '',
	name           TEXT NOT NULL DEFAULT '',
	redirect_uris  TEXT[] NOT NULL DEFAULT '{}',
	scopes         TEXT[] NOT NULL DEFAULT '{}',
	public         BOOLEAN NOT NULL DEFAULT false,
	token_format   TEXT NOT NULL DEFAULT 'reference',
	application_id TEXT NOT NULL DEFAULT '',
	disabled       BOOLEAN NOT NULL DEFAULT false,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS auth_codes (
	code                  TEXT PRIMARY KEY,
	client_id             TEXT NOT NULL,
	user_id               TEXT NOT NULL,
	redirect_uri          TEXT NOT NULL,
	scope                 TEXT NOT NULL DEFAULT '',
	code_challenge        TEXT NOT NULL DEFAULT '',
	code_challenge_method TEXT NOT NULL DEFAULT '',
	nonce                 TEXT NOT NULL DEFAULT '',
	expires_at            TIMESTAMPTZ NOT NULL,
	used                  BOOLEAN NOT NULL DEFAULT false,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sessions (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	client_id          TEXT NOT NULL DEFAULT '',
	application_id     TEXT NOT NULL DEFAULT '',
	access_token_hash  TEXT NOT NULL,
	refresh_token_hash TEXT NOT NULL DEFAULT '',
	scope              TEXT NOT NULL DEFAULT '',
	active             BOOLEAN NOT NULL DEFAULT true,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	expires_at         TIMESTAMPTZ NOT NULL,
	last_activity_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	user_agent         TEXT NOT NULL DEFAULT '',
	ip_address         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS sessions_access_token_hash_idx ON sessions (access_token_hash);
CREATE INDEX IF NOT EXISTS sessions_refresh_token_hash_idx ON sessions (refresh_token_hash);
CREATE INDEX IF NOT EXISTS sessions_user_id_idx ON sessions (user_id);

CREATE TABLE IF NOT EXISTS audit_events (
	id         TEXT PRIMARY KEY,
	actor      TEXT NOT NULL,
	action     TEXT NOT NULL,
	target     TEXT NOT NULL DEFAULT '',
	metadata   JSONB NOT NULL DEFAULT '{}',
	ip_address TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS audit_events_created_at_idx ON audit_events (created_at);
`

// EnsureSchema creates the authgate tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return agerrors.Internal("apply schema", err)
	}
	return nil
}

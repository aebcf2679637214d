package core

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL creates the tables the security core owns. persistent_logins
// follows the classic series/token/last_used layout.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
    id            BIGSERIAL PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    authorities   TEXT NOT NULL DEFAULT 'ROLE_USER',
    enabled       BOOLEAN NOT NULL DEFAULT TRUE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS persistent_logins (
    series    TEXT PRIMARY KEY,
    token     TEXT NOT NULL,
    email     TEXT NOT NULL,
    last_used TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS persistent_logins_email_idx ON persistent_logins (email);

CREATE TABLE IF NOT EXISTS one_time_tokens (
    token      TEXT PRIMARY KEY,
    email      TEXT NOT NULL,
    purpose    TEXT NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema applies the embedded DDL. Idempotent; runs at startup.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schemaDDL)
	return err
}

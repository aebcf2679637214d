package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// One-time token purposes.
const (
	PurposeConfirmRegistration = "confirm"
	PurposePasswordReset       = "reset"
)

// OneTimeToken is a single-use, short-lived token mailed to a user for
// registration confirmation or password reset.
type OneTimeToken struct {
	Token     string
	Email     string
	Purpose   string
	ExpiresAt time.Time
}

var ErrOneTimeTokenInvalid = errors.New("one-time token invalid or expired")

// OneTimeTokenRepository persists single-use tokens. Consume must delete the
// token in the same conditional operation that validates it, so a token can
// never be spent twice.
type OneTimeTokenRepository interface {
	Create(ctx context.Context, token OneTimeToken) error
	Peek(ctx context.Context, token, purpose string) (*OneTimeToken, error)
	Consume(ctx context.Context, token, purpose string) (*OneTimeToken, error)
}

// PgOneTimeTokenRepository implements OneTimeTokenRepository using pgxpool.
type PgOneTimeTokenRepository struct {
	db *pgxpool.Pool
}

func NewPgOneTimeTokenRepository(db *pgxpool.Pool) *PgOneTimeTokenRepository {
	return &PgOneTimeTokenRepository{db: db}
}

func (r *PgOneTimeTokenRepository) Create(ctx context.Context, token OneTimeToken) error {
	const q = `INSERT INTO one_time_tokens (token, email, purpose, expires_at) VALUES ($1,$2,$3,$4)`
	_, err := r.db.Exec(ctx, q, token.Token, token.Email, token.Purpose, token.ExpiresAt)
	return err
}

func (r *PgOneTimeTokenRepository) Peek(ctx context.Context, token, purpose string) (*OneTimeToken, error) {
	const q = `SELECT token, email, purpose, expires_at FROM one_time_tokens WHERE token=$1 AND purpose=$2`
	var t OneTimeToken
	if err := r.db.QueryRow(ctx, q, token, purpose).Scan(&t.Token, &t.Email, &t.Purpose, &t.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOneTimeTokenInvalid
		}
		return nil, err
	}
	if time.Now().After(t.ExpiresAt) {
		return nil, ErrOneTimeTokenInvalid
	}
	return &t, nil
}

// Consume validates and deletes in one statement; the RETURNING clause makes
// double-spends observe a miss.
func (r *PgOneTimeTokenRepository) Consume(ctx context.Context, token, purpose string) (*OneTimeToken, error) {
	const q = `DELETE FROM one_time_tokens WHERE token=$1 AND purpose=$2 RETURNING token, email, purpose, expires_at`
	var t OneTimeToken
	if err := r.db.QueryRow(ctx, q, token, purpose).Scan(&t.Token, &t.Email, &t.Purpose, &t.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOneTimeTokenInvalid
		}
		return nil, err
	}
	if time.Now().After(t.ExpiresAt) {
		return nil, ErrOneTimeTokenInvalid
	}
	return &t, nil
}

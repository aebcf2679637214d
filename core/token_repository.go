package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgTokenRepository stores remember-me series in the persistent_logins table.
type PgTokenRepository struct {
	db *pgxpool.Pool
}

func NewPgTokenRepository(db *pgxpool.Pool) *PgTokenRepository {
	return &PgTokenRepository{db: db}
}

func (r *PgTokenRepository) Create(ctx context.Context, token RememberMeToken) error {
	const q = `INSERT INTO persistent_logins (series, token, email, last_used) VALUES ($1,$2,$3,$4)`
	_, err := r.db.Exec(ctx, q, token.Series, token.Token, token.Email, token.LastUsed)
	return err
}

func (r *PgTokenRepository) Find(ctx context.Context, series string) (*RememberMeToken, error) {
	const q = `SELECT series, token, email, last_used FROM persistent_logins WHERE series=$1`
	var t RememberMeToken
	if err := r.db.QueryRow(ctx, q, series).Scan(&t.Series, &t.Token, &t.Email, &t.LastUsed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// Rotate replaces the token value only if the stored value still matches
// oldToken. The WHERE clause makes the update a single conditional write, so
// concurrent rotations of the same value leave exactly one winner.
func (r *PgTokenRepository) Rotate(ctx context.Context, series, oldToken, newToken string, lastUsed time.Time) (bool, error) {
	const q = `UPDATE persistent_logins SET token=$3, last_used=$4 WHERE series=$1 AND token=$2`
	tag, err := r.db.Exec(ctx, q, series, oldToken, newToken, lastUsed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgTokenRepository) DeleteSeries(ctx context.Context, series string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM persistent_logins WHERE series=$1`, series)
	return err
}

func (r *PgTokenRepository) DeleteAllForUser(ctx context.Context, email string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM persistent_logins WHERE email=$1`, email)
	return err
}

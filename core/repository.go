package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRecord is the persisted projection the security core reads: identifier,
// hashed-credential reference, granted authorities, and an enabled flag
// flipped by registration confirmation.
type UserRecord struct {
	ID           int64
	Email        string
	PasswordHash string
	Authorities  []string
	Enabled      bool
	CreatedAt    time.Time
}

// ErrUserNotFound is returned by repositories on a lookup miss.
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines persistence operations for user records.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*UserRecord, error)
	Create(ctx context.Context, email, passwordHash string, authorities []string, enabled bool) (int64, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	Enable(ctx context.Context, email string) error
}

// PgUserRepository implements UserRepository using pgxpool.
type PgUserRepository struct {
	db *pgxpool.Pool
}

func NewPgUserRepository(db *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{db: db}
}

func (r *PgUserRepository) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	const q = `SELECT id, email, password_hash, authorities, enabled, created_at FROM users WHERE email=$1`
	var u UserRecord
	var authorities string
	if err := r.db.QueryRow(ctx, q, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &authorities, &u.Enabled, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.Authorities = splitAuthorities(authorities)
	return &u, nil
}

func (r *PgUserRepository) Create(ctx context.Context, email, passwordHash string, authorities []string, enabled bool) (int64, error) {
	const q = `INSERT INTO users (email, password_hash, authorities, enabled) VALUES ($1,$2,$3,$4) RETURNING id`
	var id int64
	if err := r.db.QueryRow(ctx, q, email, passwordHash, joinAuthorities(authorities), enabled).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgUserRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash=$2 WHERE email=$1`, email, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PgUserRepository) Enable(ctx context.Context, email string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET enabled=TRUE WHERE email=$1`, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Authorities are stored as a comma-joined text column.

func joinAuthorities(authorities []string) string {
	return strings.Join(authorities, ",")
}

func splitAuthorities(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// In-memory store fakes substituted for the pg/redis repositories in tests.

type memoryUserRepository struct {
	mu    sync.Mutex
	seq   int64
	users map[string]*UserRecord
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{users: make(map[string]*UserRecord)}
}

func (r *memoryUserRepository) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memoryUserRepository) Create(ctx context.Context, email, passwordHash string, authorities []string, enabled bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[email]; ok {
		return 0, errors.New("duplicate key value violates unique constraint")
	}
	r.seq++
	r.users[email] = &UserRecord{
		ID:           r.seq,
		Email:        email,
		PasswordHash: passwordHash,
		Authorities:  authorities,
		Enabled:      enabled,
		CreatedAt:    time.Now(),
	}
	return r.seq, nil
}

func (r *memoryUserRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *memoryUserRepository) Enable(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return ErrUserNotFound
	}
	u.Enabled = true
	return nil
}

type memoryTokenRepository struct {
	mu     sync.Mutex
	series map[string]*RememberMeToken
}

func newMemoryTokenRepository() *memoryTokenRepository {
	return &memoryTokenRepository{series: make(map[string]*RememberMeToken)}
}

func (r *memoryTokenRepository) Create(ctx context.Context, token RememberMeToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := token
	r.series[token.Series] = &cp
	return nil
}

func (r *memoryTokenRepository) Find(ctx context.Context, series string) (*RememberMeToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.series[series]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *memoryTokenRepository) Rotate(ctx context.Context, series, oldToken, newToken string, lastUsed time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.series[series]
	if !ok || t.Token != oldToken {
		return false, nil
	}
	t.Token = newToken
	t.LastUsed = lastUsed
	return true, nil
}

func (r *memoryTokenRepository) DeleteSeries(ctx context.Context, series string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.series, series)
	return nil
}

func (r *memoryTokenRepository) DeleteAllForUser(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for s, t := range r.series {
		if t.Email == email {
			delete(r.series, s)
		}
	}
	return nil
}

func (r *memoryTokenRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.series)
}

type memoryOneTimeRepository struct {
	mu     sync.Mutex
	tokens map[string]*OneTimeToken
}

func newMemoryOneTimeRepository() *memoryOneTimeRepository {
	return &memoryOneTimeRepository{tokens: make(map[string]*OneTimeToken)}
}

func (r *memoryOneTimeRepository) Create(ctx context.Context, token OneTimeToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := token
	r.tokens[token.Token] = &cp
	return nil
}

func (r *memoryOneTimeRepository) Peek(ctx context.Context, token, purpose string) (*OneTimeToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok || t.Purpose != purpose || time.Now().After(t.ExpiresAt) {
		return nil, ErrOneTimeTokenInvalid
	}
	cp := *t
	return &cp, nil
}

func (r *memoryOneTimeRepository) Consume(ctx context.Context, token, purpose string) (*OneTimeToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok || t.Purpose != purpose || time.Now().After(t.ExpiresAt) {
		return nil, ErrOneTimeTokenInvalid
	}
	delete(r.tokens, token)
	cp := *t
	return &cp, nil
}

// latestTokenFor returns the most recently created token for email/purpose.
func (r *memoryOneTimeRepository) latestTokenFor(email, purpose string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *OneTimeToken
	for _, t := range r.tokens {
		if t.Email == email && t.Purpose == purpose {
			if latest == nil || t.ExpiresAt.After(latest.ExpiresAt) {
				latest = t
			}
		}
	}
	if latest == nil {
		return ""
	}
	return latest.Token
}

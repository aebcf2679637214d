package core

import (
	"context"
	"errors"
	"log"
)

const (
	bootstrapEmail    = "test@mail.com"
	bootstrapPassword = "password"
)

// BootstrapTestUser seeds the well-known demo account when it does not
// exist yet. Idempotent; guarded by config.
func BootstrapTestUser(ctx context.Context, repo UserRepository, hasher PasswordHasher, cfg Config) error {
	if !cfg.BootstrapTestUser {
		return nil
	}

	_, err := repo.FindByEmail(ctx, bootstrapEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	hash, err := hasher.Hash(bootstrapPassword)
	if err != nil {
		return err
	}
	if _, err := repo.Create(ctx, bootstrapEmail, hash, []string{"ROLE_USER"}, true); err != nil {
		return err
	}
	log.Printf("bootstrap test user created email=%s", bootstrapEmail)
	return nil
}

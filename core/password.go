package core

import (
	"errors"
	"log"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher is a one-way, salted, cost-parameterized hash primitive.
// Hash output self-describes its parameters, so raising the cost factor
// never invalidates previously stored records.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) bool
}

// BcryptHasher implements PasswordHasher on bcrypt. Stateless and safe for
// concurrent use.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash produces an encoded hash with a fresh random salt per call.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify recomputes the digest using the parameters embedded in encoded and
// compares in constant time. A malformed stored hash is treated as "no match"
// and logged as a data-integrity warning, never an error.
func (h *BcryptHasher) Verify(plaintext, encoded string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plaintext))
	if err == nil {
		return true
	}
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		log.Printf("warning: malformed stored password hash: %v", err)
	}
	return false
}

// dummyHash is a valid bcrypt hash of an unguessable value. The DAO provider
// verifies against it when the claimed identifier is unknown, so a miss costs
// the same as a wrong password and usernames cannot be enumerated by timing.
const dummyHash = "$2a$12$K6uHjqSzsD0lTfqQhY0kKePZr0bYmuO2rbMYkjeqa8RZxspy0y9PK"

package core

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	encoded, err := h.Hash("s3cret-value")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !h.Verify("s3cret-value", encoded) {
		t.Fatalf("Verify rejected the original plaintext")
	}
	if h.Verify("other-value", encoded) {
		t.Fatalf("Verify accepted a different plaintext")
	}
}

func TestBcryptHasherSaltRandomization(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	first, err := h.Hash("same-plaintext")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	second, err := h.Hash("same-plaintext")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if first == second {
		t.Fatalf("two hashes of the same plaintext must differ")
	}
	if !h.Verify("same-plaintext", first) || !h.Verify("same-plaintext", second) {
		t.Fatalf("both salted hashes must verify against the plaintext")
	}
}

func TestBcryptHasherCostTravelsWithHash(t *testing.T) {
	low := NewBcryptHasher(bcrypt.MinCost)
	encoded, err := low.Hash("stable-across-cost")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	// Raising the configured cost must not invalidate older records.
	high := NewBcryptHasher(bcrypt.MinCost + 2)
	if !high.Verify("stable-across-cost", encoded) {
		t.Fatalf("hash produced at a lower cost no longer verifies")
	}

	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		t.Fatalf("Cost error: %v", err)
	}
	if cost != bcrypt.MinCost {
		t.Fatalf("expected embedded cost %d, got %d", bcrypt.MinCost, cost)
	}
}

func TestBcryptHasherMalformedHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	for _, encoded := range []string{"", "not-a-hash", "$2a$xx$corrupt"} {
		if h.Verify("anything", encoded) {
			t.Fatalf("Verify accepted malformed hash %q", encoded)
		}
	}
}

func TestBcryptHasherCostClamped(t *testing.T) {
	h := NewBcryptHasher(99)
	encoded, err := h.Hash("pw")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		t.Fatalf("Cost error: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Fatalf("expected out-of-range cost to clamp to %d, got %d", bcrypt.DefaultCost, cost)
	}
}

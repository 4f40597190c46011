package security

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "" {
		t.Fatal("Hash() returned empty string")
	}
	if hash == "correct horse battery staple" {
		t.Fatal("Hash() returned the plaintext secret")
	}

	if !h.Verify(hash, "correct horse battery staple") {
		t.Error("Verify() = false for correct secret")
	}
	if h.Verify(hash, "wrong secret") {
		t.Error("Verify() = true for wrong secret")
	}
}

func TestHasher_VerifyEmptyHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	if h.Verify("", "any secret") {
		t.Error("Verify() = true for empty stored hash")
	}
}

func TestHasher_VerifyMalformedHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	if h.Verify("not-a-bcrypt-hash", "secret") {
		t.Error("Verify() = true for malformed stored hash")
	}
}

func TestNewHasher_InvalidCost(t *testing.T) {
	tests := []struct {
		name string
		cost int
	}{
		{"negative", -1},
		{"zero", 0},
		{"too large", bcrypt.MaxCost + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHasher(tt.cost)
			if h.cost != bcrypt.DefaultCost {
				t.Errorf("NewHasher(%d).cost = %d, want %d", tt.cost, h.cost, bcrypt.DefaultCost)
			}
		})
	}
}

func TestHasher_DistinctHashes(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	first, err := h.Hash("same secret")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	second, err := h.Hash("same secret")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if first == second {
		t.Error("Hash() produced identical hashes for the same input, salt missing")
	}
}

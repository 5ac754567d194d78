package auth

import "testing"

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(4) // minimum bcrypt cost keeps the test fast

	hash, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if hash == "secret123" {
		t.Fatalf("hash must not equal the plaintext")
	}

	if !h.Verify("secret123", hash) {
		t.Fatalf("expected the right password to verify")
	}
	if h.Verify("wrong", hash) {
		t.Fatalf("expected the wrong password to fail")
	}
}

func TestHasherClampsInvalidCost(t *testing.T) {
	h := NewHasher(99)
	hash, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("hash failed with clamped cost: %v", err)
	}
	if !h.Verify("secret123", hash) {
		t.Fatalf("expected verification after cost clamp")
	}
}

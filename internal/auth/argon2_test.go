package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashSecret_Format(t *testing.T) {
	t.Parallel()

	hash, err := HashSecret("mk_live_abc123_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Fatalf("hash should have 6 parts, got %d: %s", len(parts), hash)
	}
	if parts[1] != "argon2id" || parts[2] != "v=19" || parts[3] != "m=65536,t=3,p=4" {
		t.Errorf("unexpected PHC header: %s", hash)
	}
}

func TestHashSecret_Salted(t *testing.T) {
	t.Parallel()

	a, err := HashSecret("same")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}
	b, err := HashSecret("same")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}
	if a == b {
		t.Error("two hashes of the same secret should differ by salt")
	}
}

func TestVerifySecret(t *testing.T) {
	t.Parallel()

	hash, err := HashSecret("correct horse")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	tests := []struct {
		name   string
		secret string
		want   bool
	}{
		{"match", "correct horse", true},
		{"mismatch", "wrong horse", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ok, err := VerifySecret(tt.secret, hash)
			if err != nil {
				t.Fatalf("VerifySecret failed: %v", err)
			}
			if ok != tt.want {
				t.Errorf("VerifySecret(%q) = %v, want %v", tt.secret, ok, tt.want)
			}
		})
	}
}

func TestVerifySecret_BadHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		hash    string
		wantErr error
	}{
		{"empty", "", ErrInvalidHash},
		{"bcrypt", "$2a$10$abcdefghijklmnopqrstuv", ErrInvalidHash},
		{"bad params", "$argon2id$v=19$garbage$c2FsdA$aGFzaA", ErrInvalidHash},
		{"bad salt", "$argon2id$v=19$m=65536,t=3,p=4$!!!$aGFzaA", ErrInvalidHash},
		{"old version", "$argon2id$v=16$m=65536,t=3,p=4$c2FsdA$aGFzaA", ErrIncompatibleVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := VerifySecret("x", tt.hash)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("VerifySecret error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	a := CacheKey("mk_live_abc123_secret")
	if a != CacheKey("mk_live_abc123_secret") {
		t.Error("CacheKey should be deterministic")
	}
	if a == CacheKey("mk_live_abc123_other") {
		t.Error("different keys should differ")
	}
	if len(a) != 32 {
		t.Errorf("CacheKey length = %d, want 32", len(a))
	}
}

package signature_test

import (
	"strings"
	"testing"

	"github.com/m3n3sx/gatehouse/signature"
)

func TestGenerateSecretFormat(t *testing.T) {
	secret := signature.GenerateSecret()

	if !strings.HasPrefix(secret, "whsec_") {
		t.Errorf("expected prefix 'whsec_', got %q", secret)
	}

	// whsec_ (6) + 64 hex chars (32 bytes) = 70 total
	if len(secret) != 70 {
		t.Errorf("expected length 70, got %d for %q", len(secret), secret)
	}
}

func TestGenerateKeyFormat(t *testing.T) {
	key := signature.GenerateKey()

	if !strings.HasPrefix(key, "mak_") {
		t.Errorf("expected prefix 'mak_', got %q", key)
	}

	// mak_ (4) + 64 hex chars (32 bytes) = 68 total
	if len(key) != 68 {
		t.Errorf("expected length 68, got %d for %q", len(key), key)
	}
}

func TestGenerateUniqueness(t *testing.T) {
	if signature.GenerateSecret() == signature.GenerateSecret() {
		t.Error("two consecutive GenerateSecret() calls returned the same value")
	}
	if signature.GenerateKey() == signature.GenerateKey() {
		t.Error("two consecutive GenerateKey() calls returned the same value")
	}
}

func TestHashKeyDeterministic(t *testing.T) {
	a := signature.HashKey("mak_abc", "pepper")
	b := signature.HashKey("mak_abc", "pepper")
	if a != b {
		t.Errorf("HashKey not deterministic: %q vs %q", a, b)
	}

	// SHA-256 = 32 bytes = 64 hex chars.
	if len(a) != 64 {
		t.Errorf("expected hash length 64, got %d", len(a))
	}
}

func TestHashKeySensitivity(t *testing.T) {
	base := signature.HashKey("mak_abc", "pepper")

	if signature.HashKey("mak_abd", "pepper") == base {
		t.Error("different plaintexts produced the same hash")
	}
	if signature.HashKey("mak_abc", "other-pepper") == base {
		t.Error("different hash secrets produced the same hash")
	}
}

func TestHashEqual(t *testing.T) {
	h := signature.HashKey("mak_abc", "pepper")

	if !signature.HashEqual(h, h) {
		t.Error("HashEqual returned false for identical hashes")
	}
	if signature.HashEqual(h, signature.HashKey("mak_xyz", "pepper")) {
		t.Error("HashEqual returned true for different hashes")
	}
}

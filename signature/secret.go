package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// GenerateSecret creates a cryptographically random webhook signing secret.
// Format: "whsec_" + 32 bytes hex = 70 characters total.
func GenerateSecret() string {
	return "whsec_" + randomHex(32)
}

// GenerateKey creates a cryptographically random API key plaintext.
// Format: "mak_" + 32 bytes hex = 68 characters total. The plaintext is
// returned to the caller exactly once; only its keyed hash is ever stored.
func GenerateKey() string {
	return "mak_" + randomHex(32)
}

// HashKey computes the storable form of an API key plaintext: HMAC-SHA256
// keyed with the service-level hash secret, hex-encoded. The plaintext
// itself is never persisted.
func HashKey(plaintext, hashSecret string) string {
	mac := hmac.New(sha256.New, []byte(hashSecret))
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashEqual compares two key hashes in constant time. Used on the validation
// path so hash comparison never short-circuits.
func HashEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("gatehouse: failed to generate random secret: " + err.Error())
	}
	return hex.EncodeToString(b)
}

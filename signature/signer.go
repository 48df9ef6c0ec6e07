// Package signature provides HMAC-SHA256 webhook signing and verification,
// plus generation and keyed hashing of Gatehouse credentials.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer computes HMAC-SHA256 signatures for webhook payloads.
type Signer struct{}

// NewSigner returns a new Signer.
func NewSigner() *Signer {
	return &Signer{}
}

// Sign generates the HMAC-SHA256 signature over the exact payload bytes
// using the endpoint's shared secret. Returns a versioned signature in the
// format "sha256=<hex>" — receivers recompute the HMAC over the delivered
// body bytes and compare in constant time.
func (s *Signer) Sign(payload []byte, secret string) string {
	return Sign(payload, secret)
}

// Sign generates the HMAC-SHA256 signature over the exact payload bytes.
// Returns a versioned signature in the format "sha256=<hex>".
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

package signature_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/m3n3sx/gatehouse/signature"
)

func TestSignKnownVector(t *testing.T) {
	signer := signature.NewSigner()
	payload := []byte(`{"event":"settings.updated"}`)
	secret := "whsec_testsecret123"

	got := signer.Sign(payload, secret)

	// Compute expected HMAC-SHA256 independently over the exact body bytes.
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if got != expected {
		t.Errorf("Sign() = %q, want %q", got, expected)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := signature.NewSigner()
	payload := []byte(`{"event":"backup.created","data":{"backup_id":"bk_01h2x"}}`)
	secret := "whsec_roundtripsecret"

	sig := signer.Sign(payload, secret)
	if !signer.Verify(payload, secret, sig) {
		t.Error("Verify() returned false for valid signature")
	}
}

func TestVerifyTamperedPayload(t *testing.T) {
	signer := signature.NewSigner()
	payload := []byte(`{"original":true}`)
	secret := "whsec_tampersecret"

	sig := signer.Sign(payload, secret)

	tampered := []byte(`{"original":false}`)
	if signer.Verify(tampered, secret, sig) {
		t.Error("Verify() returned true for tampered payload")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	signer := signature.NewSigner()
	payload := []byte(`{"data":"value"}`)
	secret := "whsec_correct"

	sig := signer.Sign(payload, secret)

	if signer.Verify(payload, "whsec_wrong", sig) {
		t.Error("Verify() returned true for wrong secret")
	}
}

func TestSignatureFormat(t *testing.T) {
	signer := signature.NewSigner()
	sig := signer.Sign([]byte("test"), "secret")

	if len(sig) < 7 || sig[:7] != "sha256=" {
		t.Errorf("signature should start with 'sha256=', got %q", sig)
	}

	// sha256= prefix (7) + 64 hex chars (SHA256 = 32 bytes = 64 hex)
	if len(sig) != 71 {
		t.Errorf("expected signature length 71, got %d", len(sig))
	}
}

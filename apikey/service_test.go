package apikey_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/m3n3sx/gatehouse/actor"
	"github.com/m3n3sx/gatehouse/apikey"
	"github.com/m3n3sx/gatehouse/ratelimit"
	"github.com/m3n3sx/gatehouse/store/memory"
)

const testHashSecret = "apikey-test-hash-secret"

func ctx() context.Context { return context.Background() }

// auditStub records invalid-credential origins.
type auditStub struct {
	origins []string
}

func (a *auditStub) InvalidCredentialAttempt(_ context.Context, origin string) {
	a.origins = append(a.origins, origin)
}

func setup(t *testing.T) (*apikey.Service, *memory.Store, *clockwork.FakeClock, *auditStub) {
	t.Helper()
	s := memory.New()
	clock := clockwork.NewFakeClock()
	audit := &auditStub{}
	limiter := ratelimit.New(s, clock, time.Hour)
	svc := apikey.NewService(s, limiter, audit, apikey.Config{
		HashSecret:      testHashSecret,
		MaxKeysPerOwner: 3,
		MaxExpiry:       365 * 24 * time.Hour,
	}, clock, nil)
	return svc, s, clock, audit
}

func issue(t *testing.T, svc *apikey.Service, in apikey.IssueInput) (*apikey.Key, string) {
	t.Helper()
	if in.OwnerID == "" {
		in.OwnerID = "owner-1"
	}
	if in.DisplayName == "" {
		in.DisplayName = "test key"
	}
	k, plaintext, err := svc.Issue(ctx(), in)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return k, plaintext
}

func owner(k *apikey.Key) actor.Actor {
	return actor.Actor{OwnerID: k.OwnerID, KeyID: k.ID.String(), Permissions: k.Permissions}
}

// ──────────────────────────────────────────────────
// Issuance
// ──────────────────────────────────────────────────

func TestIssueReturnsPlaintextOnce(t *testing.T) {
	svc, s, _, _ := setup(t)

	k, plaintext := issue(t, svc, apikey.IssueInput{})
	if !strings.HasPrefix(plaintext, "mak_") || len(plaintext) != 68 {
		t.Fatalf("plaintext = %q, want mak_ + 64 hex chars", plaintext)
	}

	stored, err := s.GetKey(ctx(), k.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.KeyHash == plaintext || stored.KeyHash == "" {
		t.Fatal("plaintext must not be stored; only its keyed hash")
	}
	if !stored.IsActive {
		t.Fatal("issued key should be active")
	}
}

func TestIssuePermissionIntersection(t *testing.T) {
	svc, _, _, _ := setup(t)

	k, _ := issue(t, svc, apikey.IssueInput{
		Permissions: []string{"read_settings", "launch_missiles", "manage_themes"},
	})
	want := []string{"read_settings", "manage_themes"}
	if len(k.Permissions) != 2 || k.Permissions[0] != want[0] || k.Permissions[1] != want[1] {
		t.Fatalf("permissions = %v, want %v", k.Permissions, want)
	}

	// Nothing recognized falls back to read-only.
	k2, _ := issue(t, svc, apikey.IssueInput{Permissions: []string{"bogus"}})
	if len(k2.Permissions) != 1 || k2.Permissions[0] != apikey.PermReadSettings {
		t.Fatalf("permissions = %v, want [%s]", k2.Permissions, apikey.PermReadSettings)
	}
}

func TestIssueValidatesInput(t *testing.T) {
	svc, _, _, _ := setup(t)

	var vErr *apikey.ValidationError
	_, _, err := svc.Issue(ctx(), apikey.IssueInput{OwnerID: "owner-1"})
	if !errors.As(err, &vErr) || vErr.Field != "display_name" {
		t.Fatalf("err = %v, want display_name validation error", err)
	}

	_, _, err = svc.Issue(ctx(), apikey.IssueInput{DisplayName: "x"})
	if !errors.As(err, &vErr) || vErr.Field != "owner_id" {
		t.Fatalf("err = %v, want owner_id validation error", err)
	}
}

func TestIssueQuota(t *testing.T) {
	svc, _, _, _ := setup(t)

	for i := 0; i < 3; i++ {
		issue(t, svc, apikey.IssueInput{DisplayName: "key"})
	}

	var qErr *apikey.QuotaExceededError
	_, _, err := svc.Issue(ctx(), apikey.IssueInput{OwnerID: "owner-1", DisplayName: "one too many"})
	if !errors.As(err, &qErr) || qErr.Limit != 3 {
		t.Fatalf("err = %v, want quota exceeded at 3", err)
	}

	// Other owners are unaffected.
	issue(t, svc, apikey.IssueInput{OwnerID: "owner-2"})
}

func TestIssueExpiryClamped(t *testing.T) {
	svc, _, clock, _ := setup(t)
	now := clock.Now().UTC()

	past := now.Add(-time.Hour)
	_, _, err := svc.Issue(ctx(), apikey.IssueInput{
		OwnerID: "owner-1", DisplayName: "x", ExpiresAt: &past,
	})
	if !errors.Is(err, apikey.ErrInvalidExpiration) {
		t.Fatalf("err = %v, want ErrInvalidExpiration", err)
	}

	far := now.Add(10 * 365 * 24 * time.Hour)
	k, _ := issue(t, svc, apikey.IssueInput{ExpiresAt: &far})
	want := now.Add(365 * 24 * time.Hour)
	if k.ExpiresAt == nil || !k.ExpiresAt.Equal(want) {
		t.Fatalf("expires_at = %v, want clamped to %v", k.ExpiresAt, want)
	}
}

// ──────────────────────────────────────────────────
// Validation
// ──────────────────────────────────────────────────

func TestValidateHappyPath(t *testing.T) {
	svc, s, _, audit := setup(t)
	k, plaintext := issue(t, svc, apikey.IssueInput{
		Permissions: []string{"read_settings", "write_settings"},
	})

	grant, err := svc.Validate(ctx(), plaintext, "")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if grant.KeyID != k.ID || grant.OwnerID != "owner-1" || len(grant.Permissions) != 2 {
		t.Fatalf("grant = %+v", grant)
	}

	stored, err := s.GetKey(ctx(), k.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.UsageCount != 1 || stored.LastUsedAt == nil {
		t.Fatalf("usage = %d lastUsed = %v, want tracked", stored.UsageCount, stored.LastUsedAt)
	}
	if len(audit.origins) != 0 {
		t.Fatalf("audit entries = %d, want 0", len(audit.origins))
	}
}

func TestValidateRejectsMissingAndUnknown(t *testing.T) {
	svc, _, _, audit := setup(t)

	if _, err := svc.Validate(ctx(), "", ""); !errors.Is(err, apikey.ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}

	_, err := svc.Validate(ctx(), "mak_never_issued", "https://caller.example.com")
	if !errors.Is(err, apikey.ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
	if len(audit.origins) != 1 || audit.origins[0] != "https://caller.example.com" {
		t.Fatalf("audit = %v, want the caller origin", audit.origins)
	}
}

func TestValidateInactiveKey(t *testing.T) {
	svc, s, _, _ := setup(t)
	k, plaintext := issue(t, svc, apikey.IssueInput{})

	k.IsActive = false
	if err := s.UpdateKey(ctx(), k); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Validate(ctx(), plaintext, ""); !errors.Is(err, apikey.ErrInactiveCredential) {
		t.Fatalf("err = %v, want ErrInactiveCredential", err)
	}
}

func TestValidateExpiredKey(t *testing.T) {
	svc, _, clock, _ := setup(t)
	exp := clock.Now().UTC().Add(time.Hour)
	_, plaintext := issue(t, svc, apikey.IssueInput{ExpiresAt: &exp})

	if _, err := svc.Validate(ctx(), plaintext, ""); err != nil {
		t.Fatalf("before expiry: %v", err)
	}

	clock.Advance(2 * time.Hour)

	if _, err := svc.Validate(ctx(), plaintext, ""); !errors.Is(err, apikey.ErrExpiredCredential) {
		t.Fatalf("err = %v, want ErrExpiredCredential", err)
	}
}

func TestValidateRateLimitTumblingWindow(t *testing.T) {
	svc, _, clock, _ := setup(t)
	_, plaintext := issue(t, svc, apikey.IssueInput{RateLimitPerHour: 2})

	for i := 0; i < 2; i++ {
		if _, err := svc.Validate(ctx(), plaintext, ""); err != nil {
			t.Fatalf("validate %d: %v", i+1, err)
		}
	}

	var rle *ratelimit.RateLimitExceededError
	_, err := svc.Validate(ctx(), plaintext, "")
	if !errors.As(err, &rle) {
		t.Fatalf("err = %v, want RateLimitExceededError", err)
	}
	if rle.Limit != 2 {
		t.Fatalf("limit = %d, want 2", rle.Limit)
	}

	// The window tumbles: a fresh hour starts a fresh counter.
	clock.Advance(time.Hour)
	if _, err := svc.Validate(ctx(), plaintext, ""); err != nil {
		t.Fatalf("after window reset: %v", err)
	}
}

func TestValidateOriginAllowlist(t *testing.T) {
	svc, _, _, _ := setup(t)
	_, plaintext := issue(t, svc, apikey.IssueInput{
		AllowedOrigins: []string{"admin.example.com", "*.sites.example.com"},
	})

	cases := []struct {
		origin string
		ok     bool
	}{
		{"https://admin.example.com", true},
		{"https://a.sites.example.com", true},
		{"https://deep.b.sites.example.com", true},
		{"https://sites.example.com", false}, // wildcard excludes the apex
		{"https://evil.example.org", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := svc.Validate(ctx(), plaintext, tc.origin)
		if tc.ok && err != nil {
			t.Errorf("origin %q: unexpected error %v", tc.origin, err)
		}
		if !tc.ok && !errors.Is(err, apikey.ErrOriginNotAllowed) {
			t.Errorf("origin %q: err = %v, want ErrOriginNotAllowed", tc.origin, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Rotation, revocation, ownership
// ──────────────────────────────────────────────────

func TestRotateInvalidatesOldPlaintext(t *testing.T) {
	svc, s, _, _ := setup(t)
	k, oldPlaintext := issue(t, svc, apikey.IssueInput{})

	if _, err := svc.Validate(ctx(), oldPlaintext, ""); err != nil {
		t.Fatal(err)
	}

	rotated, newPlaintext, err := svc.Rotate(ctx(), k.ID, owner(k))
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if newPlaintext == oldPlaintext {
		t.Fatal("rotation must mint a fresh plaintext")
	}
	if rotated.UsageCount != 0 {
		t.Fatalf("usage = %d, want reset to 0", rotated.UsageCount)
	}

	if _, err := svc.Validate(ctx(), oldPlaintext, ""); !errors.Is(err, apikey.ErrInvalidCredential) {
		t.Fatalf("old plaintext err = %v, want ErrInvalidCredential", err)
	}
	if _, err := svc.Validate(ctx(), newPlaintext, ""); err != nil {
		t.Fatalf("new plaintext: %v", err)
	}

	stored, err := s.GetKey(ctx(), k.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.UsageCount != 1 {
		t.Fatalf("usage after one validation = %d, want 1", stored.UsageCount)
	}
}

func TestRevoke(t *testing.T) {
	svc, _, _, _ := setup(t)
	k, plaintext := issue(t, svc, apikey.IssueInput{})

	if err := svc.Revoke(ctx(), k.ID, owner(k)); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if _, err := svc.Validate(ctx(), plaintext, ""); !errors.Is(err, apikey.ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential after revocation", err)
	}
	if _, err := svc.Get(ctx(), k.ID, owner(k)); !errors.Is(err, apikey.ErrKeyNotFound) {
		t.Fatalf("err = %v, want ErrKeyNotFound", err)
	}
}

func TestOwnershipChecks(t *testing.T) {
	svc, _, _, _ := setup(t)
	k, _ := issue(t, svc, apikey.IssueInput{})

	stranger := actor.Actor{OwnerID: "owner-2", Permissions: []string{"read_settings"}}
	if _, err := svc.Get(ctx(), k.ID, stranger); !errors.Is(err, actor.ErrForbidden) {
		t.Fatalf("stranger get err = %v, want ErrForbidden", err)
	}
	if _, _, err := svc.Rotate(ctx(), k.ID, stranger); !errors.Is(err, actor.ErrForbidden) {
		t.Fatalf("stranger rotate err = %v, want ErrForbidden", err)
	}
	if err := svc.Revoke(ctx(), k.ID, stranger); !errors.Is(err, actor.ErrForbidden) {
		t.Fatalf("stranger revoke err = %v, want ErrForbidden", err)
	}

	admin := actor.Actor{OwnerID: "ops", Permissions: []string{actor.Admin}}
	if _, err := svc.Get(ctx(), k.ID, admin); err != nil {
		t.Fatalf("admin get: %v", err)
	}
}

package apikey

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/m3n3sx/gatehouse/actor"
	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/internal/entity"
	"github.com/m3n3sx/gatehouse/observability"
	"github.com/m3n3sx/gatehouse/ratelimit"
	"github.com/m3n3sx/gatehouse/signature"
)

// RateLimitScope is the counter scope used for per-key validation limits.
const RateLimitScope = "apikey"

// AuditLog records security-relevant validation failures. Implementations
// must not fail the validation path; errors are swallowed and logged.
type AuditLog interface {
	InvalidCredentialAttempt(ctx context.Context, origin string)
}

// Config holds the key service configuration.
type Config struct {
	// HashSecret keys the HMAC under which plaintext keys are hashed for
	// storage. Changing it invalidates every issued key.
	HashSecret string

	// MaxKeysPerOwner caps active keys per owner.
	MaxKeysPerOwner int

	// MaxExpiry is the furthest ahead an expiry may be set; later requests
	// are silently clamped.
	MaxExpiry time.Duration

	// Metrics is optional issuance/validation instrumentation.
	Metrics *observability.Metrics
}

// Service issues, validates, rotates, and revokes API keys.
type Service struct {
	store   Store
	limiter *ratelimit.Limiter
	audit   AuditLog
	config  Config
	clock   clockwork.Clock
	logger  *slog.Logger
}

// NewService creates a key service. A nil clock uses the real clock; a nil
// audit log disables audit entries.
func NewService(store Store, limiter *ratelimit.Limiter, audit AuditLog, cfg Config, clock clockwork.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		limiter: limiter,
		audit:   audit,
		config:  cfg,
		clock:   clock,
		logger:  logger,
	}
}

// Issue creates a new API key and returns its metadata together with the
// plaintext. The plaintext is never persisted and never shown again.
func (svc *Service) Issue(ctx context.Context, in IssueInput) (*Key, string, error) {
	if strings.TrimSpace(in.DisplayName) == "" {
		return nil, "", &ValidationError{Field: "display_name", Message: "required"}
	}
	if in.OwnerID == "" {
		return nil, "", &ValidationError{Field: "owner_id", Message: "required"}
	}

	perms := intersectPermissions(in.Permissions)
	if len(perms) == 0 {
		perms = []string{PermReadSettings}
	}

	active, err := svc.store.CountActiveKeys(ctx, in.OwnerID)
	if err != nil {
		return nil, "", err
	}
	if active >= svc.config.MaxKeysPerOwner {
		return nil, "", &QuotaExceededError{OwnerID: in.OwnerID, Limit: svc.config.MaxKeysPerOwner}
	}

	now := svc.clock.Now().UTC()
	expiresAt, err := svc.clampExpiry(in.ExpiresAt, now)
	if err != nil {
		return nil, "", err
	}

	plaintext := signature.GenerateKey()

	k := &Key{
		Entity:           entity.At(now),
		ID:               id.NewKeyID(),
		OwnerID:          in.OwnerID,
		DisplayName:      in.DisplayName,
		KeyHash:          signature.HashKey(plaintext, svc.config.HashSecret),
		Permissions:      perms,
		ExpiresAt:        expiresAt,
		IsActive:         true,
		AllowedOrigins:   in.AllowedOrigins,
		RateLimitPerHour: in.RateLimitPerHour,
		Metadata:         in.Metadata,
	}

	if err := svc.store.CreateKey(ctx, k); err != nil {
		return nil, "", err
	}

	if svc.config.Metrics != nil {
		svc.config.Metrics.KeysIssuedTotal.Inc()
	}

	svc.logger.InfoContext(ctx, "api key issued",
		"key_id", k.ID,
		"owner_id", k.OwnerID,
		"permissions", strings.Join(perms, ","),
	)

	return k, plaintext, nil
}

// Validate authenticates a candidate plaintext and returns the capability
// context it grants. origin is the caller's origin (header value or bare
// hostname); it is only consulted when the key restricts origins.
//
// The checks run in a fixed order: presence, hash match, active, expiry,
// rate limit, origin. The rate counter moves only once a key has passed the
// hash, active, and expiry checks, so traffic presenting revoked or expired
// credentials never consumes quota.
func (svc *Service) Validate(ctx context.Context, candidate, origin string) (*Grant, error) {
	if candidate == "" {
		svc.recordValidation(ctx, "missing")
		return nil, ErrMissingCredential
	}

	hash := signature.HashKey(candidate, svc.config.HashSecret)

	k, err := svc.store.GetKeyByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			svc.recordValidation(ctx, "invalid")
			if svc.audit != nil {
				svc.audit.InvalidCredentialAttempt(ctx, origin)
			}
			return nil, ErrInvalidCredential
		}
		return nil, err
	}

	// The store lookup is an index probe; the authoritative comparison of
	// the stored hash against the computed one is constant-time.
	if !signature.HashEqual(k.KeyHash, hash) {
		svc.recordValidation(ctx, "invalid")
		if svc.audit != nil {
			svc.audit.InvalidCredentialAttempt(ctx, origin)
		}
		return nil, ErrInvalidCredential
	}

	if !k.IsActive {
		svc.recordValidation(ctx, "inactive")
		return nil, ErrInactiveCredential
	}

	now := svc.clock.Now().UTC()
	if k.Expired(now) {
		svc.recordValidation(ctx, "expired")
		return nil, ErrExpiredCredential
	}

	if err := svc.limiter.Allow(ctx, RateLimitScope, k.ID.String(), k.RateLimitPerHour); err != nil {
		var rle *ratelimit.RateLimitExceededError
		if errors.As(err, &rle) {
			svc.recordValidation(ctx, "rate_limited")
		}
		return nil, err
	}

	if len(k.AllowedOrigins) > 0 && !originAllowed(origin, k.AllowedOrigins) {
		svc.recordValidation(ctx, "origin_rejected")
		return nil, ErrOriginNotAllowed
	}

	if err := svc.store.TouchKey(ctx, k.ID, now); err != nil {
		// Usage bookkeeping must not fail an otherwise valid credential.
		svc.logger.WarnContext(ctx, "touch key failed", "key_id", k.ID, "error", err)
	}

	svc.recordValidation(ctx, "ok")

	return &Grant{
		KeyID:            k.ID,
		OwnerID:          k.OwnerID,
		Permissions:      k.Permissions,
		RateLimitPerHour: k.RateLimitPerHour,
	}, nil
}

// Rotate replaces the key's hash with one for a fresh plaintext, resets the
// usage count, and returns the new plaintext exactly once. Requires
// ownership or the admin permission.
func (svc *Service) Rotate(ctx context.Context, keyID id.ID, act actor.Actor) (*Key, string, error) {
	k, err := svc.store.GetKey(ctx, keyID)
	if err != nil {
		return nil, "", err
	}

	if err := act.Authorize(k.OwnerID); err != nil {
		return nil, "", err
	}

	plaintext := signature.GenerateKey()
	k.KeyHash = signature.HashKey(plaintext, svc.config.HashSecret)
	k.UsageCount = 0
	k.LastUsedAt = nil
	k.UpdatedAt = svc.clock.Now().UTC()

	if err := svc.store.UpdateKey(ctx, k); err != nil {
		return nil, "", err
	}

	svc.logger.InfoContext(ctx, "api key rotated", "key_id", k.ID, "rotated_by", act.OwnerID)

	return k, plaintext, nil
}

// Revoke deletes the key record. Requires ownership or the admin permission.
func (svc *Service) Revoke(ctx context.Context, keyID id.ID, act actor.Actor) error {
	k, err := svc.store.GetKey(ctx, keyID)
	if err != nil {
		return err
	}

	if err := act.Authorize(k.OwnerID); err != nil {
		return err
	}

	if err := svc.store.DeleteKey(ctx, keyID); err != nil {
		return err
	}

	svc.logger.InfoContext(ctx, "api key revoked", "key_id", keyID, "revoked_by", act.OwnerID)
	return nil
}

// Get returns a key's metadata. Requires ownership or the admin permission.
func (svc *Service) Get(ctx context.Context, keyID id.ID, act actor.Actor) (*Key, error) {
	k, err := svc.store.GetKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if err := act.Authorize(k.OwnerID); err != nil {
		return nil, err
	}
	return k, nil
}

// List returns the keys owned by ownerID. Requires ownership or the admin
// permission.
func (svc *Service) List(ctx context.Context, ownerID string, act actor.Actor, opts ListOpts) ([]*Key, error) {
	if err := act.Authorize(ownerID); err != nil {
		return nil, err
	}
	return svc.store.ListKeys(ctx, ownerID, opts)
}

func (svc *Service) clampExpiry(expiresAt *time.Time, now time.Time) (*time.Time, error) {
	if expiresAt == nil {
		return nil, nil
	}
	if !expiresAt.After(now) {
		return nil, ErrInvalidExpiration
	}

	max := now.Add(svc.config.MaxExpiry)
	if expiresAt.After(max) {
		return &max, nil
	}

	t := expiresAt.UTC()
	return &t, nil
}

func (svc *Service) recordValidation(_ context.Context, result string) {
	if svc.config.Metrics != nil {
		svc.config.Metrics.RecordValidation(result)
	}
}

// intersectPermissions keeps the requested permissions that exist in the
// vocabulary, preserving vocabulary order and dropping duplicates.
func intersectPermissions(requested []string) []string {
	want := make(map[string]bool, len(requested))
	for _, p := range requested {
		want[p] = true
	}

	var out []string
	for _, p := range Permissions() {
		if want[p] {
			out = append(out, p)
		}
	}
	return out
}

// originAllowed matches the caller's origin hostname against the key's
// patterns: exact hostnames and "*." prefix wildcards ("*.example.com"
// matches "a.example.com" but not "example.com").
func originAllowed(origin string, patterns []string) bool {
	host := originHost(origin)
	if host == "" {
		return false
	}

	for _, pattern := range patterns {
		p := strings.ToLower(strings.TrimSpace(pattern))
		if p == "" {
			continue
		}
		if p == "*" || p == host {
			return true
		}
		if suffix, ok := strings.CutPrefix(p, "*."); ok && strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// originHost extracts a lowercase hostname from an Origin header value or a
// bare hostname.
func originHost(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return ""
	}

	if strings.Contains(origin, "://") {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return ""
		}
		return strings.ToLower(u.Hostname())
	}

	// Bare host, possibly with port.
	if host, _, ok := strings.Cut(origin, ":"); ok {
		return strings.ToLower(host)
	}
	return strings.ToLower(origin)
}

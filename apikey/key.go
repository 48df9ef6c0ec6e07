// Package apikey implements issuance, validation, rotation, and revocation
// of opaque API keys, with per-key tumbling-window rate limits.
package apikey

import (
	"time"

	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/internal/entity"
)

// Permission vocabulary. Issued keys hold a subset of these; anything else
// requested at issuance is silently discarded.
const (
	PermReadSettings   = "read_settings"
	PermWriteSettings  = "write_settings"
	PermManageThemes   = "manage_themes"
	PermManageBackups  = "manage_backups"
	PermManageWebhooks = "manage_webhooks"
	PermAdmin          = "admin"
)

// Permissions returns the full permission vocabulary.
func Permissions() []string {
	return []string{
		PermReadSettings,
		PermWriteSettings,
		PermManageThemes,
		PermManageBackups,
		PermManageWebhooks,
		PermAdmin,
	}
}

// Key is an issued API credential. Only the keyed hash of the plaintext is
// stored; the plaintext exists transiently at issuance/rotation time and is
// returned to the caller exactly once.
type Key struct {
	entity.Entity

	// ID is the unique TypeID for this key record.
	ID id.ID `json:"id"`

	// OwnerID identifies the account that owns this key.
	OwnerID string `json:"owner_id"`

	// DisplayName is a human-readable label chosen at issuance.
	DisplayName string `json:"display_name"`

	// KeyHash is the keyed HMAC-SHA256 of the plaintext, hex-encoded.
	// Never serialized.
	KeyHash string `json:"-"`

	// Permissions is the granted capability subset.
	Permissions []string `json:"permissions"`

	// ExpiresAt is the optional expiry instant, clamped to at most one year
	// after issuance.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// LastUsedAt is the instant of the most recent successful validation.
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`

	// UsageCount is the number of successful validations. Reset on rotation.
	UsageCount int64 `json:"usage_count"`

	// IsActive indicates whether the key may validate.
	IsActive bool `json:"is_active"`

	// AllowedOrigins restricts validation to callers whose origin hostname
	// matches one of these patterns. Empty means any origin.
	AllowedOrigins []string `json:"allowed_origins,omitempty"`

	// RateLimitPerHour caps validations per tumbling hour. 0 means unlimited.
	RateLimitPerHour int `json:"rate_limit_per_hour"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the key's expiry has passed at the given instant.
func (k *Key) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// Grant is the capability context returned by a successful validation.
type Grant struct {
	KeyID            id.ID    `json:"key_id"`
	OwnerID          string   `json:"owner_id"`
	Permissions      []string `json:"permissions"`
	RateLimitPerHour int      `json:"rate_limit_per_hour"`
}

// IssueInput is the payload for issuing a new key.
type IssueInput struct {
	OwnerID          string            `json:"owner_id"`
	DisplayName      string            `json:"display_name"`
	Permissions      []string          `json:"permissions"`
	ExpiresAt        *time.Time        `json:"expires_at,omitempty"`
	AllowedOrigins   []string          `json:"allowed_origins,omitempty"`
	RateLimitPerHour int               `json:"rate_limit_per_hour,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// ListOpts configures filtering and pagination for key listing.
type ListOpts struct {
	Offset int
	Limit  int
}

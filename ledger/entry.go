package ledger

import (
	"time"

	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/internal/entity"
)

// Kind discriminates ledger entries.
type Kind string

const (
	// KindAttempt records one webhook delivery attempt.
	KindAttempt Kind = "delivery_attempt"

	// KindAudit records a credential presented with no matching key.
	KindAudit Kind = "invalid_key_attempt"
)

// Entry is one row in the reliability ledger. Attempt entries carry
// the delivery fields; audit entries carry only Origin.
type Entry struct {
	entity.Entity `bson:",inline"`

	// ID is the unique TypeID for this ledger entry.
	ID id.ID `json:"id" bson:"_id"`

	// Kind discriminates attempt entries from audit entries.
	Kind Kind `json:"kind" bson:"kind"`

	// OccurredAt is when the recorded event happened.
	OccurredAt time.Time `json:"occurred_at" bson:"occurred_at"`

	// DeliveryID is the logical delivery identifier.
	DeliveryID string `json:"delivery_id,omitempty" bson:"delivery_id,omitempty"`

	// WebhookID references the target webhook.
	WebhookID id.ID `json:"webhook_id,omitempty" bson:"webhook_id,omitempty"`

	// EventID references the delivered event.
	EventID id.ID `json:"event_id,omitempty" bson:"event_id,omitempty"`

	// EventName is the delivered event's name.
	EventName string `json:"event_name,omitempty" bson:"event_name,omitempty"`

	// Attempt is the attempt number within the delivery (1-based).
	Attempt int `json:"attempt,omitempty" bson:"attempt,omitempty"`

	// Success reports whether the attempt got a 2xx response.
	Success bool `json:"success" bson:"success"`

	// StatusCode is the HTTP status of the attempt, 0 on transport error.
	StatusCode int `json:"status_code,omitempty" bson:"status_code,omitempty"`

	// Error is the failure message, empty on success.
	Error string `json:"error,omitempty" bson:"error,omitempty"`

	// LatencyMs is the attempt latency in milliseconds.
	LatencyMs int64 `json:"latency_ms,omitempty" bson:"latency_ms,omitempty"`

	// Origin is the request origin of an audit entry, if known.
	Origin string `json:"origin,omitempty" bson:"origin,omitempty"`
}

// ListOpts configures filtering and pagination for ledger listing.
type ListOpts struct {
	Offset    int
	Limit     int
	Kind      *Kind
	WebhookID *id.ID
	From      *time.Time
	To        *time.Time
}

// Stats aggregates the current ledger contents.
type Stats struct {
	TotalEntries       int64 `json:"total_entries"`
	Attempts           int64 `json:"attempts"`
	Succeeded          int64 `json:"succeeded"`
	Failed             int64 `json:"failed"`
	InvalidKeyAttempts int64 `json:"invalid_key_attempts"`
}

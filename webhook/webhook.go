// Package webhook implements the subscription registry: CRUD with per-owner
// quotas, a synchronous connectivity probe, reserved-header stripping, and
// payload filter predicates.
package webhook

import (
	"time"

	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/internal/entity"
)

// DefaultRetryPolicy is applied when a subscription does not set its own.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelaySeconds: 5}

// RetryPolicy bounds delivery retries for one subscription.
type RetryPolicy struct {
	// MaxAttempts is the total number of delivery attempts (first try
	// included) before a delivery is marked exhausted.
	MaxAttempts int `json:"max_attempts"`

	// BaseDelaySeconds seeds the exponential backoff:
	// delay = base · 2^(attempt-1).
	BaseDelaySeconds int `json:"base_delay_seconds"`
}

// Webhook is a registered delivery subscription.
type Webhook struct {
	entity.Entity

	// ID is the unique TypeID for this webhook.
	ID id.ID `json:"id"`

	// OwnerID identifies the account that owns this webhook.
	OwnerID string `json:"owner_id"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// URL is the delivery URL.
	URL string `json:"url"`

	// Events is the subscribed subset of the catalog vocabulary.
	Events []string `json:"events"`

	// Secret is the HMAC signing secret, shown once at creation. Never
	// serialized.
	Secret string `json:"-"`

	// IsActive indicates whether the webhook receives deliveries.
	IsActive bool `json:"is_active"`

	// LastTriggeredAt is the instant of the most recent successful delivery.
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`

	// SuccessCount and FailureCount are monotonic delivery outcome counters,
	// mutated only by the delivery engine.
	SuccessCount int64 `json:"success_count"`
	FailureCount int64 `json:"failure_count"`

	// Headers are custom HTTP headers merged into each delivery. Reserved
	// names are stripped at registration.
	Headers map[string]string `json:"headers,omitempty"`

	// RetryPolicy bounds retries for this subscription.
	RetryPolicy RetryPolicy `json:"retry_policy"`

	// Filters are predicates evaluated against the event payload; all must
	// pass for the webhook to receive the event.
	Filters []Filter `json:"filters,omitempty"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Subscribed reports whether the webhook subscribes to the event name.
func (w *Webhook) Subscribed(eventName string) bool {
	for _, e := range w.Events {
		if e == eventName {
			return true
		}
	}
	return false
}

// Matches reports whether the payload passes every filter predicate.
// An empty filter list always passes.
func (w *Webhook) Matches(payload map[string]any) bool {
	for _, f := range w.Filters {
		if !f.Match(payload) {
			return false
		}
	}
	return true
}

// ListOpts configures filtering and pagination for webhook listing.
type ListOpts struct {
	Offset int
	Limit  int
	Active *bool
}

package delivery

import (
	"time"

	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/internal/entity"
)

// State represents the current state of a delivery. A delivery starts
// pending, is claimed as delivering by a worker, and ends as
// succeeded, exhausted, or suppressed. Retrying deliveries become due
// again once NextAttemptAt passes.
type State string

const (
	StatePending    State = "pending"
	StateDelivering State = "delivering"
	StateSucceeded  State = "succeeded"
	StateRetrying   State = "retrying"
	StateExhausted  State = "exhausted"
	StateSuppressed State = "suppressed"
)

// Terminal reports whether the state can no longer change.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateExhausted || s == StateSuppressed
}

// Delivery represents one webhook's copy of one event. ID identifies
// the stored record; DeliveryID is the logical identifier carried in
// the envelope and headers, stable across every retry of the same
// delivery.
type Delivery struct {
	entity.Entity `bson:",inline"`

	// ID is the unique TypeID for this delivery record.
	ID id.ID `json:"id" bson:"_id"`

	// DeliveryID is the logical delivery identifier (a UUID).
	DeliveryID string `json:"delivery_id" bson:"delivery_id"`

	// EventID references the event being delivered.
	EventID id.ID `json:"event_id" bson:"event_id"`

	// EventName is the event's name, captured at enqueue time.
	EventName string `json:"event_name" bson:"event_name"`

	// WebhookID references the target webhook.
	WebhookID id.ID `json:"webhook_id" bson:"webhook_id"`

	// State is the current delivery state.
	State State `json:"state" bson:"state"`

	// AttemptCount is the number of delivery attempts made so far.
	AttemptCount int `json:"attempt_count" bson:"attempt_count"`

	// MaxAttempts and BaseDelaySeconds are the retry policy captured
	// from the webhook at enqueue time, so a later policy change does
	// not affect in-flight deliveries.
	MaxAttempts      int `json:"max_attempts" bson:"max_attempts"`
	BaseDelaySeconds int `json:"base_delay_seconds" bson:"base_delay_seconds"`

	// NextAttemptAt is when the next delivery attempt should occur.
	NextAttemptAt time.Time `json:"next_attempt_at" bson:"next_attempt_at"`

	// LastError is the error message from the most recent failed attempt.
	LastError string `json:"last_error,omitempty" bson:"last_error,omitempty"`

	// LastStatusCode is the HTTP status code from the most recent attempt.
	LastStatusCode int `json:"last_status_code,omitempty" bson:"last_status_code,omitempty"`

	// LastResponse is the response body from the most recent attempt (capped at 1KB).
	LastResponse string `json:"last_response,omitempty" bson:"last_response,omitempty"`

	// LastLatencyMs is the latency in milliseconds of the most recent attempt.
	LastLatencyMs int64 `json:"last_latency_ms,omitempty" bson:"last_latency_ms,omitempty"`

	// CompletedAt is when the delivery reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// Result captures the outcome of a single transmission attempt.
type Result struct {
	StatusCode int
	Body       string
	Latency    time.Duration
	Err        error
}

// Success reports whether the attempt got a 2xx response.
func (r Result) Success() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// ListOpts configures filtering and pagination for delivery listing.
type ListOpts struct {
	Offset int
	Limit  int
	State  *State
}

package webhook

import (
	"errors"
	"fmt"
)

var (
	// ErrWebhookNotFound is returned when a webhook cannot be found.
	ErrWebhookNotFound = errors.New("webhook: not found")

	// ErrInvalidEvents is returned when the requested events are empty or
	// contain names outside the supported vocabulary.
	ErrInvalidEvents = errors.New("webhook: events must be a non-empty subset of the supported vocabulary")

	// ErrEndpointUnreachable is returned when the connectivity probe gets a
	// non-2xx response or a transport error. Nothing is persisted.
	ErrEndpointUnreachable = errors.New("webhook: endpoint unreachable")
)

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "webhook validation: " + e.Field + ": " + e.Message
}

// QuotaExceededError reports that the per-owner webhook cap was hit.
type QuotaExceededError struct {
	OwnerID string
	Limit   int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("webhook: quota exceeded: owner %s already holds %d webhooks", e.OwnerID, e.Limit)
}

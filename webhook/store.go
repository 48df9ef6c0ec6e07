package webhook

import (
	"context"
	"time"

	"github.com/m3n3sx/gatehouse/id"
)

// Store defines the persistence contract for webhooks.
type Store interface {
	// CreateWebhook persists a new webhook.
	CreateWebhook(ctx context.Context, w *Webhook) error

	// GetWebhook returns a webhook by ID.
	GetWebhook(ctx context.Context, whID id.ID) (*Webhook, error)

	// UpdateWebhook modifies an existing webhook.
	UpdateWebhook(ctx context.Context, w *Webhook) error

	// DeleteWebhook removes a webhook.
	DeleteWebhook(ctx context.Context, whID id.ID) error

	// ListWebhooks returns webhooks for an owner, optionally filtered.
	ListWebhooks(ctx context.Context, ownerID string, opts ListOpts) ([]*Webhook, error)

	// Resolve finds all active webhooks subscribed to an event name.
	// This is the hot path — called on every trigger.
	Resolve(ctx context.Context, eventName string) ([]*Webhook, error)

	// CountWebhooks returns the number of webhooks held by an owner.
	CountWebhooks(ctx context.Context, ownerID string) (int, error)

	// RecordDeliveryOutcome atomically increments the webhook's success or
	// failure counter; on success it also stamps lastTriggeredAt.
	RecordDeliveryOutcome(ctx context.Context, whID id.ID, success bool, at time.Time) error
}

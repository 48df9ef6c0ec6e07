package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/m3n3sx/gatehouse/id"
)

// ErrDeliveryNotFound is returned when a delivery does not exist.
var ErrDeliveryNotFound = errors.New("delivery not found")

// Store defines the persistence contract for webhook deliveries.
type Store interface {
	// Enqueue creates a pending delivery.
	Enqueue(ctx context.Context, d *Delivery) error

	// EnqueueBatch creates multiple deliveries atomically (fan-out).
	EnqueueBatch(ctx context.Context, ds []*Delivery) error

	// Dequeue claims up to limit deliveries that are due at now
	// (pending or retrying with next_attempt_at <= now), marking them
	// delivering. Implementations must ensure no double-delivery.
	Dequeue(ctx context.Context, now time.Time, limit int) ([]*Delivery, error)

	// UpdateDelivery modifies a delivery (state, attempt count, next_attempt_at, etc.).
	UpdateDelivery(ctx context.Context, d *Delivery) error

	// GetDelivery returns a delivery by record ID.
	GetDelivery(ctx context.Context, delID id.ID) (*Delivery, error)

	// ListByWebhook returns delivery history for a webhook.
	ListByWebhook(ctx context.Context, whID id.ID, opts ListOpts) ([]*Delivery, error)

	// ListByEvent returns all deliveries for a specific event.
	ListByEvent(ctx context.Context, evtID id.ID) ([]*Delivery, error)

	// CountPending returns the number of deliveries awaiting attempt.
	CountPending(ctx context.Context) (int64, error)
}

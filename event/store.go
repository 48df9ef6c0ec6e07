package event

import (
	"context"
	"errors"

	"github.com/m3n3sx/gatehouse/id"
)

// ErrEventNotFound is returned when an event does not exist.
var ErrEventNotFound = errors.New("event not found")

// Store defines the persistence contract for triggered events.
type Store interface {
	// CreateEvent persists an event. Must be durable before returning.
	CreateEvent(ctx context.Context, evt *Event) error

	// GetEvent returns an event by ID.
	GetEvent(ctx context.Context, evtID id.ID) (*Event, error)

	// ListEvents returns events, optionally filtered by name or time range.
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)
}

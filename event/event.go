// Package event defines the triggered-event record persisted for delivery.
package event

import (
	"time"

	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/internal/entity"
)

// Event is a host lifecycle event submitted for webhook delivery. The record
// is persisted so scheduled retries can rebuild the envelope without keeping
// payloads in memory.
type Event struct {
	entity.Entity

	// ID is the unique TypeID for this event.
	ID id.ID `json:"id"`

	// Name is the dot-separated event name from the catalog vocabulary
	// (e.g. "settings.updated").
	Name string `json:"name"`

	// Data is the event payload.
	Data map[string]any `json:"data"`

	// Context carries trigger-site metadata (user, site, request id) that is
	// delivered alongside the payload.
	Context map[string]any `json:"context,omitempty"`
}

// ListOpts configures filtering and pagination for event listing.
type ListOpts struct {
	Offset int
	Limit  int
	Name   string
	From   *time.Time
	To     *time.Time
}

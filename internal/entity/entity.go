// Package entity defines the base entity type for all Gatehouse domain objects.
package entity

import "time"

// Entity is the base type embedded by all gatehouse domain objects.
type Entity struct {
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// New returns an Entity with both timestamps set to the current UTC time.
func New() Entity {
	now := time.Now().UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// At returns an Entity with both timestamps set to the given instant.
// Services use this with their injected clock so tests stay deterministic.
func At(t time.Time) Entity {
	t = t.UTC()
	return Entity{CreatedAt: t, UpdatedAt: t}
}

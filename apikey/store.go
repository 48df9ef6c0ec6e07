package apikey

import (
	"context"
	"time"

	"github.com/m3n3sx/gatehouse/id"
)

// Store defines the persistence contract for API keys.
type Store interface {
	// CreateKey persists a new key record.
	CreateKey(ctx context.Context, k *Key) error

	// GetKey returns a key by record ID.
	GetKey(ctx context.Context, keyID id.ID) (*Key, error)

	// GetKeyByHash returns the key whose stored hash equals the given hash.
	// This is the hot path — called on every validation.
	GetKeyByHash(ctx context.Context, hash string) (*Key, error)

	// UpdateKey modifies an existing key record.
	UpdateKey(ctx context.Context, k *Key) error

	// DeleteKey removes a key record.
	DeleteKey(ctx context.Context, keyID id.ID) error

	// ListKeys returns keys for an owner.
	ListKeys(ctx context.Context, ownerID string, opts ListOpts) ([]*Key, error)

	// CountActiveKeys returns the number of active keys held by an owner.
	CountActiveKeys(ctx context.Context, ownerID string) (int, error)

	// TouchKey atomically increments the key's usage count and stamps its
	// last-used time. Atomic at the store level so concurrent validations
	// never lose increments.
	TouchKey(ctx context.Context, keyID id.ID, at time.Time) error
}

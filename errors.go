package gatehouse

import "errors"

// Sentinel errors returned by Gatehouse operations.
var (
	// ErrNoStore is returned when a Gatehouse is created without a store.
	ErrNoStore = errors.New("gatehouse: store is required")

	// ErrNoHashSecret is returned when a Gatehouse is created without the
	// secret that keys credential hashing.
	ErrNoHashSecret = errors.New("gatehouse: hash secret is required")

	// ErrPayloadInvalid is returned when a trigger payload fails the event
	// definition's JSON Schema.
	ErrPayloadInvalid = errors.New("gatehouse: payload validation failed")
)

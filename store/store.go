// Package store defines the composite Store interface for all
// Gatehouse persistence.
//
// Each subsystem defines its own store interface; the aggregate Store
// composes them all, so a backend implements one interface and every
// service sees only the slice it needs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/m3n3sx/gatehouse/apikey"
	"github.com/m3n3sx/gatehouse/delivery"
	"github.com/m3n3sx/gatehouse/event"
	"github.com/m3n3sx/gatehouse/ledger"
	"github.com/m3n3sx/gatehouse/webhook"
)

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("store is closed")

// Store is the aggregate persistence interface.
type Store interface {
	apikey.Store
	webhook.Store
	event.Store
	delivery.Store
	ledger.Store

	// IncrCounter increments a rate limit counter for the given
	// window bucket and returns the new count. The counter expires
	// at expiresAt.
	IncrCounter(ctx context.Context, scope, identity string, bucket, expiresAt time.Time) (int64, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}

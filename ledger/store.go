package ledger

import (
	"context"
	"time"
)

// Store defines the persistence contract for the reliability ledger.
type Store interface {
	// AppendLedger adds an entry.
	AppendLedger(ctx context.Context, e *Entry) error

	// ListLedger returns entries matching the given options, newest first.
	ListLedger(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// CountLedger returns the total number of entries.
	CountLedger(ctx context.Context) (int64, error)

	// PruneLedger drops entries older than before, then drops the
	// oldest entries until at most maxEntries remain. Returns the
	// number removed.
	PruneLedger(ctx context.Context, maxEntries int, before time.Time) (int64, error)
}

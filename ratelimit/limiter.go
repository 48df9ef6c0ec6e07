// Package ratelimit implements fixed tumbling-window rate limiting backed by
// auto-expiring store counters.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultWindow is the tumbling window size for credential rate limits.
const DefaultWindow = time.Hour

// CounterStore persists time-bucketed counters. Counters are keyed by
// (scope, identity, bucket) and expire on their own once the bucket's window
// has passed.
type CounterStore interface {
	// IncrCounter atomically increments the counter for the bucket starting
	// at bucket and returns the new value. expiresAt is the bucket boundary
	// after which the counter is dead weight and may be dropped.
	IncrCounter(ctx context.Context, scope, identity string, bucket, expiresAt time.Time) (int64, error)
}

// Limiter enforces per-identity limits over fixed, non-overlapping windows.
// Every call counts against the current bucket, including rejected ones.
type Limiter struct {
	counters CounterStore
	clock    clockwork.Clock
	window   time.Duration
}

// New creates a limiter over the given counter store. A nil clock uses the
// real clock; a zero window uses DefaultWindow.
func New(counters CounterStore, clock clockwork.Clock, window time.Duration) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		counters: counters,
		clock:    clock,
		window:   window,
	}
}

// Allow records one attempt for (scope, identity) in the current window and
// returns a RateLimitExceededError once the counter exceeds limit.
// A limit of 0 or less means unlimited.
func (l *Limiter) Allow(ctx context.Context, scope, identity string, limit int) error {
	if limit <= 0 {
		return nil
	}

	bucket := l.clock.Now().UTC().Truncate(l.window)
	expiresAt := bucket.Add(l.window)

	count, err := l.counters.IncrCounter(ctx, scope, identity, bucket, expiresAt)
	if err != nil {
		return fmt.Errorf("ratelimit: increment counter: %w", err)
	}

	if count > int64(limit) {
		return &RateLimitExceededError{
			Scope:    scope,
			Limit:    limit,
			ResetsAt: expiresAt,
		}
	}
	return nil
}

// RateLimitExceededError reports that a tumbling-window limit was hit.
type RateLimitExceededError struct {
	Scope    string
	Limit    int
	ResetsAt time.Time
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d per window for %s (resets %s)",
		e.Limit, e.Scope, e.ResetsAt.Format(time.RFC3339))
}

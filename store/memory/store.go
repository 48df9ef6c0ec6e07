// Package memory provides an in-memory Store implementation for unit
// testing and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m3n3sx/gatehouse/apikey"
	"github.com/m3n3sx/gatehouse/delivery"
	"github.com/m3n3sx/gatehouse/event"
	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/ledger"
	ghstore "github.com/m3n3sx/gatehouse/store"
	"github.com/m3n3sx/gatehouse/webhook"
)

// compile-time interface check.
var _ ghstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	keys       map[string]*apikey.Key        // keyed by ID string
	keysByHash map[string]*apikey.Key        // keyed by key hash
	webhooks   map[string]*webhook.Webhook   // keyed by ID string
	events     map[string]*event.Event       // keyed by ID string
	deliveries map[string]*delivery.Delivery // keyed by ID string
	locked     map[string]bool               // claimed deliveries
	entries    []*ledger.Entry               // append-ordered
	counters   map[string]int64              // rate limit buckets
	counterExp map[string]time.Time          // bucket expiries

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		keys:       make(map[string]*apikey.Key),
		keysByHash: make(map[string]*apikey.Key),
		webhooks:   make(map[string]*webhook.Webhook),
		events:     make(map[string]*event.Event),
		deliveries: make(map[string]*delivery.Delivery),
		locked:     make(map[string]bool),
		counters:   make(map[string]int64),
		counterExp: make(map[string]time.Time),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Ping reports whether the store is usable.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ghstore.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// apikey.Store
// ──────────────────────────────────────────────────

// CreateKey persists a new key record.
func (s *Store) CreateKey(_ context.Context, k *apikey.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *k
	s.keys[k.ID.String()] = &cp
	s.keysByHash[k.KeyHash] = &cp
	return nil
}

// GetKey returns a key by record ID.
func (s *Store) GetKey(_ context.Context, keyID id.ID) (*apikey.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.keys[keyID.String()]
	if !ok {
		return nil, apikey.ErrKeyNotFound
	}
	cp := *k
	return &cp, nil
}

// GetKeyByHash returns the key whose stored hash equals the given hash.
func (s *Store) GetKeyByHash(_ context.Context, hash string) (*apikey.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.keysByHash[hash]
	if !ok {
		return nil, apikey.ErrKeyNotFound
	}
	cp := *k
	return &cp, nil
}

// UpdateKey modifies an existing key record, reindexing the hash.
func (s *Store) UpdateKey(_ context.Context, k *apikey.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.keys[k.ID.String()]
	if !ok {
		return apikey.ErrKeyNotFound
	}
	if old.KeyHash != k.KeyHash {
		delete(s.keysByHash, old.KeyHash)
	}

	cp := *k
	cp.UpdatedAt = time.Now().UTC()
	s.keys[k.ID.String()] = &cp
	s.keysByHash[k.KeyHash] = &cp
	return nil
}

// DeleteKey removes a key record.
func (s *Store) DeleteKey(_ context.Context, keyID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[keyID.String()]
	if !ok {
		return apikey.ErrKeyNotFound
	}
	delete(s.keysByHash, k.KeyHash)
	delete(s.keys, keyID.String())
	return nil
}

// ListKeys returns keys for an owner, oldest first.
func (s *Store) ListKeys(_ context.Context, ownerID string, opts apikey.ListOpts) ([]*apikey.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*apikey.Key, 0, len(s.keys))
	for _, k := range s.keys {
		if k.OwnerID != ownerID {
			continue
		}
		cp := *k
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CountActiveKeys returns the number of active keys held by an owner.
func (s *Store) CountActiveKeys(_ context.Context, ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, k := range s.keys {
		if k.OwnerID == ownerID && k.IsActive {
			count++
		}
	}
	return count, nil
}

// TouchKey atomically increments the key's usage count and stamps its
// last-used time.
func (s *Store) TouchKey(_ context.Context, keyID id.ID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[keyID.String()]
	if !ok {
		return apikey.ErrKeyNotFound
	}
	k.UsageCount++
	k.LastUsedAt = &at
	k.UpdatedAt = at
	return nil
}

// ──────────────────────────────────────────────────
// webhook.Store
// ──────────────────────────────────────────────────

// CreateWebhook persists a new webhook.
func (s *Store) CreateWebhook(_ context.Context, w *webhook.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *w
	s.webhooks[w.ID.String()] = &cp
	return nil
}

// GetWebhook returns a webhook by ID.
func (s *Store) GetWebhook(_ context.Context, whID id.ID) (*webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[whID.String()]
	if !ok {
		return nil, webhook.ErrWebhookNotFound
	}
	cp := *w
	return &cp, nil
}

// UpdateWebhook modifies an existing webhook.
func (s *Store) UpdateWebhook(_ context.Context, w *webhook.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[w.ID.String()]; !ok {
		return webhook.ErrWebhookNotFound
	}
	cp := *w
	cp.UpdatedAt = time.Now().UTC()
	s.webhooks[w.ID.String()] = &cp
	return nil
}

// DeleteWebhook removes a webhook.
func (s *Store) DeleteWebhook(_ context.Context, whID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[whID.String()]; !ok {
		return webhook.ErrWebhookNotFound
	}
	delete(s.webhooks, whID.String())
	return nil
}

// ListWebhooks returns webhooks for an owner, oldest first.
func (s *Store) ListWebhooks(_ context.Context, ownerID string, opts webhook.ListOpts) ([]*webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*webhook.Webhook, 0, len(s.webhooks))
	for _, w := range s.webhooks {
		if w.OwnerID != ownerID {
			continue
		}
		if opts.Active != nil && w.IsActive != *opts.Active {
			continue
		}
		cp := *w
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// Resolve finds all active webhooks subscribed to an event name.
func (s *Store) Resolve(_ context.Context, eventName string) ([]*webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*webhook.Webhook
	for _, w := range s.webhooks {
		if !w.IsActive || !w.Subscribed(eventName) {
			continue
		}
		cp := *w
		result = append(result, &cp)
	}
	return result, nil
}

// CountWebhooks returns the number of webhooks held by an owner.
func (s *Store) CountWebhooks(_ context.Context, ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, w := range s.webhooks {
		if w.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

// RecordDeliveryOutcome bumps the webhook's success or failure counter.
func (s *Store) RecordDeliveryOutcome(_ context.Context, whID id.ID, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[whID.String()]
	if !ok {
		return webhook.ErrWebhookNotFound
	}
	if success {
		w.SuccessCount++
		w.LastTriggeredAt = &at
	} else {
		w.FailureCount++
	}
	w.UpdatedAt = at
	return nil
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

// CreateEvent persists an event.
func (s *Store) CreateEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *evt
	s.events[evt.ID.String()] = &cp
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(_ context.Context, evtID id.ID) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	cp := *evt
	return &cp, nil
}

// ListEvents returns events, newest first, optionally filtered.
func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Event, 0, len(s.events))
	for _, evt := range s.events {
		if opts.Name != "" && evt.Name != opts.Name {
			continue
		}
		if opts.From != nil && evt.CreatedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && evt.CreatedAt.After(*opts.To) {
			continue
		}
		cp := *evt
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// delivery.Store
// ──────────────────────────────────────────────────

// Enqueue creates a pending delivery.
func (s *Store) Enqueue(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *d
	s.deliveries[d.ID.String()] = &cp
	return nil
}

// EnqueueBatch creates multiple deliveries atomically.
func (s *Store) EnqueueBatch(_ context.Context, ds []*delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range ds {
		cp := *d
		s.deliveries[d.ID.String()] = &cp
	}
	return nil
}

// Dequeue claims due deliveries, marking them delivering. Returns
// copies so callers can mutate without holding a lock.
func (s *Store) Dequeue(_ context.Context, now time.Time, limit int) ([]*delivery.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]*delivery.Delivery, 0, len(s.deliveries))
	for _, d := range s.deliveries {
		if d.State != delivery.StatePending && d.State != delivery.StateRetrying {
			continue
		}
		if d.NextAttemptAt.After(now) {
			continue
		}
		if s.locked[d.ID.String()] {
			continue
		}
		candidates = append(candidates, d)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].NextAttemptAt.Before(candidates[j].NextAttemptAt)
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	result := make([]*delivery.Delivery, 0, len(candidates))
	for _, d := range candidates {
		d.State = delivery.StateDelivering
		s.locked[d.ID.String()] = true
		cp := *d
		result = append(result, &cp)
	}
	return result, nil
}

// UpdateDelivery modifies a delivery and releases its claim.
func (s *Store) UpdateDelivery(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deliveries[d.ID.String()]; !ok {
		return delivery.ErrDeliveryNotFound
	}
	cp := *d
	cp.UpdatedAt = time.Now().UTC()
	s.deliveries[d.ID.String()] = &cp
	delete(s.locked, d.ID.String())
	return nil
}

// GetDelivery returns a copy of the delivery by record ID.
func (s *Store) GetDelivery(_ context.Context, delID id.ID) (*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deliveries[delID.String()]
	if !ok {
		return nil, delivery.ErrDeliveryNotFound
	}
	cp := *d
	return &cp, nil
}

// ListByWebhook returns delivery history for a webhook, newest first.
func (s *Store) ListByWebhook(_ context.Context, whID id.ID, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*delivery.Delivery, 0, len(s.deliveries))
	for _, d := range s.deliveries {
		if d.WebhookID.String() != whID.String() {
			continue
		}
		if opts.State != nil && d.State != *opts.State {
			continue
		}
		cp := *d
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ListByEvent returns all deliveries for a specific event.
func (s *Store) ListByEvent(_ context.Context, evtID id.ID) ([]*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*delivery.Delivery
	for _, d := range s.deliveries {
		if d.EventID.String() != evtID.String() {
			continue
		}
		cp := *d
		result = append(result, &cp)
	}
	return result, nil
}

// CountPending returns the number of deliveries awaiting attempt.
func (s *Store) CountPending(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, d := range s.deliveries {
		if d.State == delivery.StatePending || d.State == delivery.StateRetrying {
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// ledger.Store
// ──────────────────────────────────────────────────

// AppendLedger adds a ledger entry.
func (s *Store) AppendLedger(_ context.Context, e *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.entries = append(s.entries, &cp)
	return nil
}

// ListLedger returns ledger entries, newest first.
func (s *Store) ListLedger(_ context.Context, opts ledger.ListOpts) ([]*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*ledger.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if opts.Kind != nil && e.Kind != *opts.Kind {
			continue
		}
		if opts.WebhookID != nil && e.WebhookID.String() != opts.WebhookID.String() {
			continue
		}
		if opts.From != nil && e.OccurredAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && e.OccurredAt.After(*opts.To) {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OccurredAt.After(result[j].OccurredAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CountLedger returns the total number of ledger entries.
func (s *Store) CountLedger(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// PruneLedger applies the retention policy: drop entries older than
// before, then drop the oldest until at most maxEntries remain.
func (s *Store) PruneLedger(_ context.Context, maxEntries int, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if !e.OccurredAt.Before(before) {
			kept = append(kept, e)
		}
	}
	removed := int64(len(s.entries) - len(kept))
	s.entries = kept

	if maxEntries > 0 && len(s.entries) > maxEntries {
		drop := len(s.entries) - maxEntries
		removed += int64(drop)
		s.entries = append([]*ledger.Entry(nil), s.entries[drop:]...)
	}
	return removed, nil
}

// ──────────────────────────────────────────────────
// Rate limit counters
// ──────────────────────────────────────────────────

// IncrCounter increments a window bucket counter and returns the new
// count. Expired buckets are reaped lazily.
func (s *Store) IncrCounter(_ context.Context, scope, identity string, bucket, expiresAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reap buckets that expired before the current window opened.
	// Compared against the caller-supplied bucket time so an injected
	// clock stays authoritative.
	for k, exp := range s.counterExp {
		if exp.Before(bucket) {
			delete(s.counters, k)
			delete(s.counterExp, k)
		}
	}

	key := scope + ":" + identity + ":" + bucket.UTC().Format(time.RFC3339)
	s.counters[key]++
	s.counterExp[key] = expiresAt
	return s.counters[key], nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset >= len(items) {
		return nil
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

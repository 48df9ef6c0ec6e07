package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/internal/entity"
	"github.com/m3n3sx/gatehouse/ledger"
)

type ledgerModel struct {
	ID         string    `bson:"_id"`
	Kind       string    `bson:"kind"`
	OccurredAt time.Time `bson:"occurred_at"`
	DeliveryID string    `bson:"delivery_id,omitempty"`
	WebhookID  string    `bson:"webhook_id,omitempty"`
	EventID    string    `bson:"event_id,omitempty"`
	EventName  string    `bson:"event_name,omitempty"`
	Attempt    int       `bson:"attempt,omitempty"`
	Success    bool      `bson:"success"`
	Error      string    `bson:"error,omitempty"`
	StatusCode int       `bson:"status_code,omitempty"`
	LatencyMs  int64     `bson:"latency_ms,omitempty"`
	Origin     string    `bson:"origin,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func toLedgerModel(e *ledger.Entry) *ledgerModel {
	m := &ledgerModel{
		ID:         e.ID.String(),
		Kind:       string(e.Kind),
		OccurredAt: e.OccurredAt,
		DeliveryID: e.DeliveryID,
		EventName:  e.EventName,
		Attempt:    e.Attempt,
		Success:    e.Success,
		Error:      e.Error,
		StatusCode: e.StatusCode,
		LatencyMs:  e.LatencyMs,
		Origin:     e.Origin,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
	if !e.WebhookID.IsNil() {
		m.WebhookID = e.WebhookID.String()
	}
	if !e.EventID.IsNil() {
		m.EventID = e.EventID.String()
	}
	return m
}

func fromLedgerModel(m *ledgerModel) (*ledger.Entry, error) {
	entryID, err := id.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse ledger entry ID %q: %w", m.ID, err)
	}
	e := &ledger.Entry{
		Entity:     entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:         entryID,
		Kind:       ledger.Kind(m.Kind),
		OccurredAt: m.OccurredAt,
		DeliveryID: m.DeliveryID,
		EventName:  m.EventName,
		Attempt:    m.Attempt,
		Success:    m.Success,
		Error:      m.Error,
		StatusCode: m.StatusCode,
		LatencyMs:  m.LatencyMs,
		Origin:     m.Origin,
	}
	if m.WebhookID != "" {
		if e.WebhookID, err = id.ParseWebhookID(m.WebhookID); err != nil {
			return nil, fmt.Errorf("parse webhook ID %q: %w", m.WebhookID, err)
		}
	}
	if m.EventID != "" {
		if e.EventID, err = id.ParseEventID(m.EventID); err != nil {
			return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
		}
	}
	return e, nil
}

// AppendLedger adds an entry to the reliability ledger.
func (s *Store) AppendLedger(ctx context.Context, e *ledger.Entry) error {
	if _, err := s.db.Collection(colLedger).InsertOne(ctx, toLedgerModel(e)); err != nil {
		return fmt.Errorf("gatehouse/mongo: append ledger: %w", err)
	}
	return nil
}

// ListLedger returns ledger entries, newest first.
func (s *Store) ListLedger(ctx context.Context, opts ledger.ListOpts) ([]*ledger.Entry, error) {
	filter := bson.M{}
	if opts.Kind != nil {
		filter["kind"] = string(*opts.Kind)
	}
	if opts.WebhookID != nil {
		filter["webhook_id"] = opts.WebhookID.String()
	}
	if opts.From != nil || opts.To != nil {
		occurred := bson.M{}
		if opts.From != nil {
			occurred["$gte"] = opts.From.UTC()
		}
		if opts.To != nil {
			occurred["$lt"] = opts.To.UTC()
		}
		filter["occurred_at"] = occurred
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colLedger).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("gatehouse/mongo: list ledger: %w", err)
	}

	var models []ledgerModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("gatehouse/mongo: list ledger: %w", err)
	}

	result := make([]*ledger.Entry, 0, len(models))
	for i := range models {
		e, err := fromLedgerModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

// CountLedger returns the total number of ledger entries.
func (s *Store) CountLedger(ctx context.Context) (int64, error) {
	count, err := s.db.Collection(colLedger).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("gatehouse/mongo: count ledger: %w", err)
	}
	return count, nil
}

// PruneLedger drops entries older than before, then trims the oldest
// entries until at most maxEntries remain.
func (s *Store) PruneLedger(ctx context.Context, maxEntries int, before time.Time) (int64, error) {
	col := s.db.Collection(colLedger)

	res, err := col.DeleteMany(ctx, bson.M{"occurred_at": bson.M{"$lt": before.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("gatehouse/mongo: prune ledger by age: %w", err)
	}
	removed := res.DeletedCount

	total, err := col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return removed, fmt.Errorf("gatehouse/mongo: prune ledger: %w", err)
	}
	if maxEntries <= 0 || total <= int64(maxEntries) {
		return removed, nil
	}

	// Find the newest entry that falls outside the cap and drop it along
	// with everything older.
	var cutoff ledgerModel
	err = col.FindOne(ctx, bson.M{},
		options.FindOne().
			SetSort(bson.D{{Key: "occurred_at", Value: -1}}).
			SetSkip(int64(maxEntries)),
	).Decode(&cutoff)
	if err != nil {
		if isNoDocuments(err) {
			return removed, nil
		}
		return removed, fmt.Errorf("gatehouse/mongo: prune ledger cutoff: %w", err)
	}

	capRes, err := col.DeleteMany(ctx, bson.M{"occurred_at": bson.M{"$lte": cutoff.OccurredAt}})
	if err != nil {
		return removed, fmt.Errorf("gatehouse/mongo: prune ledger by count: %w", err)
	}
	return removed + capRes.DeletedCount, nil
}

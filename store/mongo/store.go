// Package mongo provides a MongoDB-backed Store implementation.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	ghstore "github.com/m3n3sx/gatehouse/store"
)

// Collection name constants.
const (
	colKeys       = "gatehouse_keys"
	colWebhooks   = "gatehouse_webhooks"
	colEvents     = "gatehouse_events"
	colDeliveries = "gatehouse_deliveries"
	colLedger     = "gatehouse_ledger"
	colCounters   = "gatehouse_counters"
)

// Compile-time interface check.
var _ ghstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New creates a new MongoDB store using the given client and database
// name.
func New(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("gatehouse/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// IncrCounter increments a rate limit bucket and returns the new
// count. Buckets are upserted; a TTL index on expires_at reaps them.
func (s *Store) IncrCounter(ctx context.Context, scope, identity string, bucket, expiresAt time.Time) (int64, error) {
	counterID := fmt.Sprintf("%s:%s:%d", scope, identity, bucket.UTC().Unix())

	var doc struct {
		Count int64 `bson:"count"`
	}
	err := s.db.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": counterID},
		bson.M{
			"$inc": bson.M{"count": 1},
			"$set": bson.M{"expires_at": expiresAt.UTC()},
		},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("gatehouse/mongo: incr counter: %w", err)
	}
	return doc.Count, nil
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks the driver's not-found sentinel.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colKeys: {
			{
				Keys:    bson.D{{Key: "key_hash", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colWebhooks: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "events", Value: 1}, {Key: "is_active", Value: 1}}},
		},
		colEvents: {
			{Keys: bson.D{{Key: "name", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		colDeliveries: {
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
			{Keys: bson.D{{Key: "webhook_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "event_id", Value: 1}}},
		},
		colLedger: {
			{Keys: bson.D{{Key: "occurred_at", Value: -1}}},
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "occurred_at", Value: -1}}},
		},
		colCounters: {
			{
				Keys:    bson.D{{Key: "expires_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(0),
			},
		},
	}
}

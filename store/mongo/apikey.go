package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/m3n3sx/gatehouse/apikey"
	"github.com/m3n3sx/gatehouse/id"
)

// CreateKey persists a new key record.
func (s *Store) CreateKey(ctx context.Context, k *apikey.Key) error {
	if _, err := s.db.Collection(colKeys).InsertOne(ctx, toKeyModel(k)); err != nil {
		return fmt.Errorf("gatehouse/mongo: create key: %w", err)
	}
	return nil
}

// GetKey returns a key by record ID.
func (s *Store) GetKey(ctx context.Context, keyID id.ID) (*apikey.Key, error) {
	var m keyModel
	err := s.db.Collection(colKeys).FindOne(ctx, bson.M{"_id": keyID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, apikey.ErrKeyNotFound
		}
		return nil, fmt.Errorf("gatehouse/mongo: get key: %w", err)
	}
	return fromKeyModel(&m)
}

// GetKeyByHash returns the key whose stored hash equals the given hash.
func (s *Store) GetKeyByHash(ctx context.Context, hash string) (*apikey.Key, error) {
	var m keyModel
	err := s.db.Collection(colKeys).FindOne(ctx, bson.M{"key_hash": hash}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, apikey.ErrKeyNotFound
		}
		return nil, fmt.Errorf("gatehouse/mongo: get key by hash: %w", err)
	}
	return fromKeyModel(&m)
}

// UpdateKey replaces an existing key record.
func (s *Store) UpdateKey(ctx context.Context, k *apikey.Key) error {
	m := toKeyModel(k)
	m.UpdatedAt = now()

	res, err := s.db.Collection(colKeys).ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("gatehouse/mongo: update key: %w", err)
	}
	if res.MatchedCount == 0 {
		return apikey.ErrKeyNotFound
	}
	return nil
}

// DeleteKey removes a key record.
func (s *Store) DeleteKey(ctx context.Context, keyID id.ID) error {
	res, err := s.db.Collection(colKeys).DeleteOne(ctx, bson.M{"_id": keyID.String()})
	if err != nil {
		return fmt.Errorf("gatehouse/mongo: delete key: %w", err)
	}
	if res.DeletedCount == 0 {
		return apikey.ErrKeyNotFound
	}
	return nil
}

// ListKeys returns keys for an owner, oldest first.
func (s *Store) ListKeys(ctx context.Context, ownerID string, opts apikey.ListOpts) ([]*apikey.Key, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colKeys).Find(ctx, bson.M{"owner_id": ownerID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("gatehouse/mongo: list keys: %w", err)
	}

	var models []keyModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("gatehouse/mongo: list keys: %w", err)
	}

	result := make([]*apikey.Key, 0, len(models))
	for i := range models {
		k, err := fromKeyModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	return result, nil
}

// CountActiveKeys returns the number of active keys held by an owner.
func (s *Store) CountActiveKeys(ctx context.Context, ownerID string) (int, error) {
	count, err := s.db.Collection(colKeys).CountDocuments(ctx, bson.M{
		"owner_id":  ownerID,
		"is_active": true,
	})
	if err != nil {
		return 0, fmt.Errorf("gatehouse/mongo: count active keys: %w", err)
	}
	return int(count), nil
}

// TouchKey atomically increments the key's usage count and stamps its
// last-used time.
func (s *Store) TouchKey(ctx context.Context, keyID id.ID, at time.Time) error {
	res, err := s.db.Collection(colKeys).UpdateOne(ctx,
		bson.M{"_id": keyID.String()},
		bson.M{
			"$inc": bson.M{"usage_count": 1},
			"$set": bson.M{"last_used_at": at.UTC(), "updated_at": at.UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("gatehouse/mongo: touch key: %w", err)
	}
	if res.MatchedCount == 0 {
		return apikey.ErrKeyNotFound
	}
	return nil
}

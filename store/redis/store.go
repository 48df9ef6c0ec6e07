// Package redis provides a Redis-backed Store implementation.
//
// Entities are stored as JSON blobs under typed keys, with sorted set
// and set indexes for listings, subscription resolution, and the due
// queue. Dequeue claims due deliveries with a Lua script so multiple
// processes never double-deliver.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	ghstore "github.com/m3n3sx/gatehouse/store"
)

// compile-time interface check
var _ ghstore.Store = (*Store)(nil)

// Store implements store.Store using Redis.
type Store struct {
	rdb goredis.UniversalClient
}

// New creates a new Redis store.
func New(client goredis.UniversalClient) *Store {
	return &Store{rdb: client}
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// scoreFromTime converts a time.Time to a sorted set score (unix seconds as float64).
func scoreFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// isRedisNil checks if an error is a Redis nil (key not found).
func isRedisNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}

// getEntity retrieves and decodes a JSON entity.
func (s *Store) getEntity(ctx context.Context, key string, dest any) error {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// setEntity encodes and stores a JSON entity.
func (s *Store) setEntity(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("gatehouse/redis: marshal entity: %w", err)
	}
	return s.rdb.Set(ctx, key, raw, 0).Err()
}

// IncrCounter increments a rate limit bucket and stamps its expiry.
func (s *Store) IncrCounter(ctx context.Context, scope, identity string, bucket, expiresAt time.Time) (int64, error) {
	key := counterKey(scope, identity, bucket)

	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, expiresAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("gatehouse/redis: incr counter: %w", err)
	}
	return incr.Val(), nil
}

func counterKey(scope, identity string, bucket time.Time) string {
	return prefixCounter + scope + ":" + identity + ":" + strconv.FormatInt(bucket.UTC().Unix(), 10)
}

// applyPagination applies offset and limit to a slice.
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

package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/m3n3sx/gatehouse/apikey"
	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/internal/entity"
)

// keyModel is the JSON representation stored in Redis.
type keyModel struct {
	ID               string            `json:"id"`
	OwnerID          string            `json:"owner_id"`
	DisplayName      string            `json:"display_name"`
	KeyHash          string            `json:"key_hash"`
	Permissions      []string          `json:"permissions"`
	ExpiresAt        *time.Time        `json:"expires_at,omitempty"`
	LastUsedAt       *time.Time        `json:"last_used_at,omitempty"`
	UsageCount       int64             `json:"usage_count"`
	IsActive         bool              `json:"is_active"`
	AllowedOrigins   []string          `json:"allowed_origins,omitempty"`
	RateLimitPerHour int               `json:"rate_limit_per_hour"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func toKeyModel(k *apikey.Key) *keyModel {
	return &keyModel{
		ID:               k.ID.String(),
		OwnerID:          k.OwnerID,
		DisplayName:      k.DisplayName,
		KeyHash:          k.KeyHash,
		Permissions:      k.Permissions,
		ExpiresAt:        k.ExpiresAt,
		LastUsedAt:       k.LastUsedAt,
		UsageCount:       k.UsageCount,
		IsActive:         k.IsActive,
		AllowedOrigins:   k.AllowedOrigins,
		RateLimitPerHour: k.RateLimitPerHour,
		Metadata:         k.Metadata,
		CreatedAt:        k.CreatedAt,
		UpdatedAt:        k.UpdatedAt,
	}
}

func fromKeyModel(m *keyModel) (*apikey.Key, error) {
	keyID, err := id.ParseKeyID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse key ID %q: %w", m.ID, err)
	}
	return &apikey.Key{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               keyID,
		OwnerID:          m.OwnerID,
		DisplayName:      m.DisplayName,
		KeyHash:          m.KeyHash,
		Permissions:      m.Permissions,
		ExpiresAt:        m.ExpiresAt,
		LastUsedAt:       m.LastUsedAt,
		UsageCount:       m.UsageCount,
		IsActive:         m.IsActive,
		AllowedOrigins:   m.AllowedOrigins,
		RateLimitPerHour: m.RateLimitPerHour,
		Metadata:         m.Metadata,
	}, nil
}

// touchScript atomically bumps usage_count and last_used_at inside the
// stored JSON blob, so concurrent validations never lose increments.
// KEYS[1] = entity key
// ARGV[1] = RFC3339 timestamp
var touchScript = goredis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then return 0 end
local doc = cjson.decode(raw)
doc.usage_count = (doc.usage_count or 0) + 1
doc.last_used_at = ARGV[1]
doc.updated_at = ARGV[1]
redis.call('SET', KEYS[1], cjson.encode(doc))
return 1
`)

func (s *Store) CreateKey(ctx context.Context, k *apikey.Key) error {
	m := toKeyModel(k)

	if err := s.setEntity(ctx, entityKey(prefixKey, m.ID), m); err != nil {
		return fmt.Errorf("gatehouse/redis: create key: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, uniqueKeyHash+m.KeyHash, m.ID, 0)
	pipe.ZAdd(ctx, zKeyOwner+m.OwnerID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("gatehouse/redis: create key indexes: %w", err)
	}
	return nil
}

func (s *Store) GetKey(ctx context.Context, keyID id.ID) (*apikey.Key, error) {
	var m keyModel
	if err := s.getEntity(ctx, entityKey(prefixKey, keyID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, apikey.ErrKeyNotFound
		}
		return nil, fmt.Errorf("gatehouse/redis: get key: %w", err)
	}
	return fromKeyModel(&m)
}

func (s *Store) GetKeyByHash(ctx context.Context, hash string) (*apikey.Key, error) {
	keyID, err := s.rdb.Get(ctx, uniqueKeyHash+hash).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, apikey.ErrKeyNotFound
		}
		return nil, fmt.Errorf("gatehouse/redis: get key by hash: %w", err)
	}

	var m keyModel
	if err := s.getEntity(ctx, entityKey(prefixKey, keyID), &m); err != nil {
		if isRedisNil(err) {
			return nil, apikey.ErrKeyNotFound
		}
		return nil, fmt.Errorf("gatehouse/redis: get key by hash: %w", err)
	}
	return fromKeyModel(&m)
}

func (s *Store) UpdateKey(ctx context.Context, k *apikey.Key) error {
	key := entityKey(prefixKey, k.ID.String())

	var old keyModel
	if err := s.getEntity(ctx, key, &old); err != nil {
		if isRedisNil(err) {
			return apikey.ErrKeyNotFound
		}
		return fmt.Errorf("gatehouse/redis: update key: %w", err)
	}

	m := toKeyModel(k)
	m.UpdatedAt = now()
	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("gatehouse/redis: update key: %w", err)
	}

	// Reindex the hash on rotation.
	if old.KeyHash != m.KeyHash {
		pipe := s.rdb.Pipeline()
		pipe.Del(ctx, uniqueKeyHash+old.KeyHash)
		pipe.Set(ctx, uniqueKeyHash+m.KeyHash, m.ID, 0)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("gatehouse/redis: update key hash index: %w", err)
		}
	}
	return nil
}

func (s *Store) DeleteKey(ctx context.Context, keyID id.ID) error {
	key := entityKey(prefixKey, keyID.String())

	var m keyModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isRedisNil(err) {
			return apikey.ErrKeyNotFound
		}
		return fmt.Errorf("gatehouse/redis: delete key: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, uniqueKeyHash+m.KeyHash)
	pipe.ZRem(ctx, zKeyOwner+m.OwnerID, m.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("gatehouse/redis: delete key: %w", err)
	}
	return nil
}

func (s *Store) ListKeys(ctx context.Context, ownerID string, opts apikey.ListOpts) ([]*apikey.Key, error) {
	ids, err := s.rdb.ZRange(ctx, zKeyOwner+ownerID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("gatehouse/redis: list keys: %w", err)
	}

	result := make([]*apikey.Key, 0, len(ids))
	for _, keyID := range ids {
		var m keyModel
		if err := s.getEntity(ctx, entityKey(prefixKey, keyID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		k, err := fromKeyModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) CountActiveKeys(ctx context.Context, ownerID string) (int, error) {
	keys, err := s.ListKeys(ctx, ownerID, apikey.ListOpts{})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, k := range keys {
		if k.IsActive {
			count++
		}
	}
	return count, nil
}

func (s *Store) TouchKey(ctx context.Context, keyID id.ID, at time.Time) error {
	res, err := touchScript.Run(ctx, s.rdb,
		[]string{entityKey(prefixKey, keyID.String())},
		at.UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("gatehouse/redis: touch key: %w", err)
	}
	if res == 0 {
		return apikey.ErrKeyNotFound
	}
	return nil
}

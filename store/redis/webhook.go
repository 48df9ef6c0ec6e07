package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/internal/entity"
	"github.com/m3n3sx/gatehouse/webhook"
)

// webhookModel is the JSON representation stored in Redis.
type webhookModel struct {
	ID              string              `json:"id"`
	OwnerID         string              `json:"owner_id"`
	Name            string              `json:"name"`
	URL             string              `json:"url"`
	Events          []string            `json:"events"`
	Secret          string              `json:"secret"`
	IsActive        bool                `json:"is_active"`
	LastTriggeredAt *time.Time          `json:"last_triggered_at,omitempty"`
	SuccessCount    int64               `json:"success_count"`
	FailureCount    int64               `json:"failure_count"`
	Headers         map[string]string   `json:"headers,omitempty"`
	RetryPolicy     webhook.RetryPolicy `json:"retry_policy"`
	Filters         []webhook.Filter    `json:"filters,omitempty"`
	Metadata        map[string]string   `json:"metadata,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toWebhookModel(w *webhook.Webhook) *webhookModel {
	return &webhookModel{
		ID:              w.ID.String(),
		OwnerID:         w.OwnerID,
		Name:            w.Name,
		URL:             w.URL,
		Events:          w.Events,
		Secret:          w.Secret,
		IsActive:        w.IsActive,
		LastTriggeredAt: w.LastTriggeredAt,
		SuccessCount:    w.SuccessCount,
		FailureCount:    w.FailureCount,
		Headers:         w.Headers,
		RetryPolicy:     w.RetryPolicy,
		Filters:         w.Filters,
		Metadata:        w.Metadata,
		CreatedAt:       w.CreatedAt,
		UpdatedAt:       w.UpdatedAt,
	}
}

func fromWebhookModel(m *webhookModel) (*webhook.Webhook, error) {
	whID, err := id.ParseWebhookID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse webhook ID %q: %w", m.ID, err)
	}
	return &webhook.Webhook{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              whID,
		OwnerID:         m.OwnerID,
		Name:            m.Name,
		URL:             m.URL,
		Events:          m.Events,
		Secret:          m.Secret,
		IsActive:        m.IsActive,
		LastTriggeredAt: m.LastTriggeredAt,
		SuccessCount:    m.SuccessCount,
		FailureCount:    m.FailureCount,
		Headers:         m.Headers,
		RetryPolicy:     m.RetryPolicy,
		Filters:         m.Filters,
		Metadata:        m.Metadata,
	}, nil
}

// outcomeScript atomically bumps the delivery counters inside the
// stored JSON blob.
// KEYS[1] = entity key
// ARGV[1] = "1" for success, "0" for failure
// ARGV[2] = RFC3339 timestamp
var outcomeScript = goredis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then return 0 end
local doc = cjson.decode(raw)
if ARGV[1] == '1' then
    doc.success_count = (doc.success_count or 0) + 1
    doc.last_triggered_at = ARGV[2]
else
    doc.failure_count = (doc.failure_count or 0) + 1
end
doc.updated_at = ARGV[2]
redis.call('SET', KEYS[1], cjson.encode(doc))
return 1
`)

func (s *Store) CreateWebhook(ctx context.Context, w *webhook.Webhook) error {
	m := toWebhookModel(w)

	if err := s.setEntity(ctx, entityKey(prefixWebhook, m.ID), m); err != nil {
		return fmt.Errorf("gatehouse/redis: create webhook: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zWebhookOwner+m.OwnerID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if m.IsActive {
		for _, name := range m.Events {
			pipe.SAdd(ctx, sWebhookEvent+name, m.ID)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("gatehouse/redis: create webhook indexes: %w", err)
	}
	return nil
}

func (s *Store) GetWebhook(ctx context.Context, whID id.ID) (*webhook.Webhook, error) {
	var m webhookModel
	if err := s.getEntity(ctx, entityKey(prefixWebhook, whID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, webhook.ErrWebhookNotFound
		}
		return nil, fmt.Errorf("gatehouse/redis: get webhook: %w", err)
	}
	return fromWebhookModel(&m)
}

func (s *Store) UpdateWebhook(ctx context.Context, w *webhook.Webhook) error {
	key := entityKey(prefixWebhook, w.ID.String())

	var old webhookModel
	if err := s.getEntity(ctx, key, &old); err != nil {
		if isRedisNil(err) {
			return webhook.ErrWebhookNotFound
		}
		return fmt.Errorf("gatehouse/redis: update webhook: %w", err)
	}

	m := toWebhookModel(w)
	m.UpdatedAt = now()
	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("gatehouse/redis: update webhook: %w", err)
	}

	// Rebuild subscription indexes: membership depends on both the
	// event list and the active flag.
	pipe := s.rdb.Pipeline()
	for _, name := range old.Events {
		pipe.SRem(ctx, sWebhookEvent+name, m.ID)
	}
	if m.IsActive {
		for _, name := range m.Events {
			pipe.SAdd(ctx, sWebhookEvent+name, m.ID)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("gatehouse/redis: update webhook indexes: %w", err)
	}
	return nil
}

func (s *Store) DeleteWebhook(ctx context.Context, whID id.ID) error {
	key := entityKey(prefixWebhook, whID.String())

	var m webhookModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isRedisNil(err) {
			return webhook.ErrWebhookNotFound
		}
		return fmt.Errorf("gatehouse/redis: delete webhook: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, zWebhookOwner+m.OwnerID, m.ID)
	for _, name := range m.Events {
		pipe.SRem(ctx, sWebhookEvent+name, m.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("gatehouse/redis: delete webhook: %w", err)
	}
	return nil
}

func (s *Store) ListWebhooks(ctx context.Context, ownerID string, opts webhook.ListOpts) ([]*webhook.Webhook, error) {
	ids, err := s.rdb.ZRange(ctx, zWebhookOwner+ownerID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("gatehouse/redis: list webhooks: %w", err)
	}

	result := make([]*webhook.Webhook, 0, len(ids))
	for _, whID := range ids {
		var m webhookModel
		if err := s.getEntity(ctx, entityKey(prefixWebhook, whID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if opts.Active != nil && m.IsActive != *opts.Active {
			continue
		}
		w, err := fromWebhookModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) Resolve(ctx context.Context, eventName string) ([]*webhook.Webhook, error) {
	ids, err := s.rdb.SMembers(ctx, sWebhookEvent+eventName).Result()
	if err != nil {
		return nil, fmt.Errorf("gatehouse/redis: resolve: %w", err)
	}

	var result []*webhook.Webhook
	for _, whID := range ids {
		var m webhookModel
		if err := s.getEntity(ctx, entityKey(prefixWebhook, whID), &m); err != nil {
			if isRedisNil(err) {
				// Stale index entry.
				s.rdb.SRem(ctx, sWebhookEvent+eventName, whID)
				continue
			}
			return nil, err
		}
		w, err := fromWebhookModel(&m)
		if err != nil {
			return nil, err
		}
		if !w.IsActive || !w.Subscribed(eventName) {
			continue
		}
		result = append(result, w)
	}
	return result, nil
}

func (s *Store) CountWebhooks(ctx context.Context, ownerID string) (int, error) {
	count, err := s.rdb.ZCard(ctx, zWebhookOwner+ownerID).Result()
	if err != nil {
		return 0, fmt.Errorf("gatehouse/redis: count webhooks: %w", err)
	}
	return int(count), nil
}

func (s *Store) RecordDeliveryOutcome(ctx context.Context, whID id.ID, success bool, at time.Time) error {
	flag := "0"
	if success {
		flag = "1"
	}
	res, err := outcomeScript.Run(ctx, s.rdb,
		[]string{entityKey(prefixWebhook, whID.String())},
		flag, at.UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("gatehouse/redis: record outcome: %w", err)
	}
	if res == 0 {
		return webhook.ErrWebhookNotFound
	}
	return nil
}

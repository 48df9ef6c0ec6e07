package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/m3n3sx/gatehouse/delivery"
	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/internal/entity"
)

// deliveryModel is the JSON representation stored in Redis.
type deliveryModel struct {
	ID               string     `json:"id"`
	DeliveryID       string     `json:"delivery_id"`
	EventID          string     `json:"event_id"`
	EventName        string     `json:"event_name"`
	WebhookID        string     `json:"webhook_id"`
	State            string     `json:"state"`
	AttemptCount     int        `json:"attempt_count"`
	MaxAttempts      int        `json:"max_attempts"`
	BaseDelaySeconds int        `json:"base_delay_seconds"`
	NextAttemptAt    time.Time  `json:"next_attempt_at"`
	LastError        string     `json:"last_error"`
	LastStatusCode   int        `json:"last_status_code"`
	LastResponse     string     `json:"last_response"`
	LastLatencyMs    int64      `json:"last_latency_ms"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toDeliveryModel(d *delivery.Delivery) *deliveryModel {
	return &deliveryModel{
		ID:               d.ID.String(),
		DeliveryID:       d.DeliveryID,
		EventID:          d.EventID.String(),
		EventName:        d.EventName,
		WebhookID:        d.WebhookID.String(),
		State:            string(d.State),
		AttemptCount:     d.AttemptCount,
		MaxAttempts:      d.MaxAttempts,
		BaseDelaySeconds: d.BaseDelaySeconds,
		NextAttemptAt:    d.NextAttemptAt,
		LastError:        d.LastError,
		LastStatusCode:   d.LastStatusCode,
		LastResponse:     d.LastResponse,
		LastLatencyMs:    d.LastLatencyMs,
		CompletedAt:      d.CompletedAt,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func fromDeliveryModel(m *deliveryModel) (*delivery.Delivery, error) {
	delID, err := id.ParseRecordID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery record ID %q: %w", m.ID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	whID, err := id.ParseWebhookID(m.WebhookID)
	if err != nil {
		return nil, fmt.Errorf("parse webhook ID %q: %w", m.WebhookID, err)
	}
	return &delivery.Delivery{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               delID,
		DeliveryID:       m.DeliveryID,
		EventID:          evtID,
		EventName:        m.EventName,
		WebhookID:        whID,
		State:            delivery.State(m.State),
		AttemptCount:     m.AttemptCount,
		MaxAttempts:      m.MaxAttempts,
		BaseDelaySeconds: m.BaseDelaySeconds,
		NextAttemptAt:    m.NextAttemptAt,
		LastError:        m.LastError,
		LastStatusCode:   m.LastStatusCode,
		LastResponse:     m.LastResponse,
		LastLatencyMs:    m.LastLatencyMs,
		CompletedAt:      m.CompletedAt,
	}, nil
}

// dequeueScript atomically claims due deliveries from the sorted set.
// KEYS[1] = gh:z:del:due
// ARGV[1] = current unix timestamp (score threshold)
// ARGV[2] = limit
var dequeueScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #ids == 0 then return {} end
for i, id in ipairs(ids) do
    redis.call('ZREM', KEYS[1], id)
end
return ids
`)

func (s *Store) Enqueue(ctx context.Context, d *delivery.Delivery) error {
	return s.EnqueueBatch(ctx, []*delivery.Delivery{d})
}

func (s *Store) EnqueueBatch(ctx context.Context, ds []*delivery.Delivery) error {
	if len(ds) == 0 {
		return nil
	}

	pipe := s.rdb.TxPipeline()
	for _, d := range ds {
		m := toDeliveryModel(d)
		raw, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("gatehouse/redis: enqueue marshal: %w", err)
		}
		pipe.Set(ctx, entityKey(prefixDelivery, m.ID), raw, 0)
		pipe.ZAdd(ctx, zDeliveryDue, goredis.Z{Score: scoreFromTime(m.NextAttemptAt), Member: m.ID})
		pipe.ZAdd(ctx, zDeliveryWh+m.WebhookID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
		pipe.ZAdd(ctx, zDeliveryEvt+m.EventID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("gatehouse/redis: enqueue: %w", err)
	}
	return nil
}

func (s *Store) Dequeue(ctx context.Context, at time.Time, limit int) ([]*delivery.Delivery, error) {
	nowScore := fmt.Sprintf("%f", scoreFromTime(at))
	claimed, err := dequeueScript.Run(ctx, s.rdb, []string{zDeliveryDue}, nowScore, limit).StringSlice()
	if err != nil {
		if isRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("gatehouse/redis: dequeue script: %w", err)
	}
	if len(claimed) == 0 {
		return nil, nil
	}

	deliveries := make([]*delivery.Delivery, 0, len(claimed))
	for _, entryID := range claimed {
		key := entityKey(prefixDelivery, entryID)
		var m deliveryModel
		if err := s.getEntity(ctx, key, &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, fmt.Errorf("gatehouse/redis: dequeue get: %w", err)
		}

		m.State = string(delivery.StateDelivering)
		m.UpdatedAt = now()
		if err := s.setEntity(ctx, key, &m); err != nil {
			return nil, fmt.Errorf("gatehouse/redis: dequeue claim: %w", err)
		}

		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, nil
}

func (s *Store) UpdateDelivery(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, entityKey(prefixDelivery, m.ID), m); err != nil {
		return fmt.Errorf("gatehouse/redis: update delivery: %w", err)
	}

	// A retrying delivery goes back on the due queue under its next
	// attempt time.
	if d.State == delivery.StatePending || d.State == delivery.StateRetrying {
		if err := s.rdb.ZAdd(ctx, zDeliveryDue, goredis.Z{Score: scoreFromTime(m.NextAttemptAt), Member: m.ID}).Err(); err != nil {
			return fmt.Errorf("gatehouse/redis: requeue delivery: %w", err)
		}
	}
	return nil
}

func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	var m deliveryModel
	if err := s.getEntity(ctx, entityKey(prefixDelivery, delID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, delivery.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("gatehouse/redis: get delivery: %w", err)
	}
	return fromDeliveryModel(&m)
}

func (s *Store) ListByWebhook(ctx context.Context, whID id.ID, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	// Newest first.
	ids, err := s.rdb.ZRevRange(ctx, zDeliveryWh+whID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("gatehouse/redis: list by webhook: %w", err)
	}

	result := make([]*delivery.Delivery, 0, len(ids))
	for _, entryID := range ids {
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, entryID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if opts.State != nil && delivery.State(m.State) != *opts.State {
			continue
		}
		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ListByEvent(ctx context.Context, evtID id.ID) ([]*delivery.Delivery, error) {
	ids, err := s.rdb.ZRange(ctx, zDeliveryEvt+evtID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("gatehouse/redis: list by event: %w", err)
	}

	result := make([]*delivery.Delivery, 0, len(ids))
	for _, entryID := range ids {
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, entryID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, nil
}

func (s *Store) CountPending(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zDeliveryDue).Result()
	if err != nil {
		return 0, fmt.Errorf("gatehouse/redis: count pending: %w", err)
	}
	return count, nil
}

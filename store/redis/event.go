package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/m3n3sx/gatehouse/event"
	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/internal/entity"
)

// eventModel is the JSON representation stored in Redis.
type eventModel struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Data      map[string]any `json:"data,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func toEventModel(evt *event.Event) *eventModel {
	return &eventModel{
		ID:        evt.ID.String(),
		Name:      evt.Name,
		Data:      evt.Data,
		Context:   evt.Context,
		CreatedAt: evt.CreatedAt,
		UpdatedAt: evt.UpdatedAt,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	evtID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.ID, err)
	}
	return &event.Event{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:      evtID,
		Name:    m.Name,
		Data:    m.Data,
		Context: m.Context,
	}, nil
}

func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)

	if err := s.setEntity(ctx, entityKey(prefixEvent, m.ID), m); err != nil {
		return fmt.Errorf("gatehouse/redis: create event: %w", err)
	}
	if err := s.rdb.ZAdd(ctx, zEventAll, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID}).Err(); err != nil {
		return fmt.Errorf("gatehouse/redis: create event index: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	var m eventModel
	if err := s.getEntity(ctx, entityKey(prefixEvent, evtID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("gatehouse/redis: get event: %w", err)
	}
	return fromEventModel(&m)
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	// Newest first.
	ids, err := s.rdb.ZRevRange(ctx, zEventAll, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("gatehouse/redis: list events: %w", err)
	}

	result := make([]*event.Event, 0, len(ids))
	for _, evtID := range ids {
		var m eventModel
		if err := s.getEntity(ctx, entityKey(prefixEvent, evtID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if opts.Name != "" && m.Name != opts.Name {
			continue
		}
		if opts.From != nil && m.CreatedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && m.CreatedAt.After(*opts.To) {
			continue
		}
		evt, err := fromEventModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, evt)
	}
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

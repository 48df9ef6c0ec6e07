package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/m3n3sx/gatehouse/event"
	"github.com/m3n3sx/gatehouse/id"
)

// CreateEvent persists a new event occurrence.
func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	if _, err := s.db.Collection(colEvents).InsertOne(ctx, toEventModel(evt)); err != nil {
		return fmt.Errorf("gatehouse/mongo: create event: %w", err)
	}
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	var m eventModel
	err := s.db.Collection(colEvents).FindOne(ctx, bson.M{"_id": evtID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("gatehouse/mongo: get event: %w", err)
	}
	return fromEventModel(&m)
}

// ListEvents returns events newest first.
func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	filter := bson.M{}
	if opts.Name != "" {
		filter["name"] = opts.Name
	}
	if opts.From != nil || opts.To != nil {
		created := bson.M{}
		if opts.From != nil {
			created["$gte"] = opts.From.UTC()
		}
		if opts.To != nil {
			created["$lt"] = opts.To.UTC()
		}
		filter["created_at"] = created
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colEvents).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("gatehouse/mongo: list events: %w", err)
	}

	var models []eventModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("gatehouse/mongo: list events: %w", err)
	}

	result := make([]*event.Event, 0, len(models))
	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, evt)
	}
	return result, nil
}

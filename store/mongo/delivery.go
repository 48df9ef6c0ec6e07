package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/m3n3sx/gatehouse/delivery"
	"github.com/m3n3sx/gatehouse/id"
)

// Enqueue persists a single delivery.
func (s *Store) Enqueue(ctx context.Context, d *delivery.Delivery) error {
	return s.EnqueueBatch(ctx, []*delivery.Delivery{d})
}

// EnqueueBatch persists a batch of deliveries in one round trip.
func (s *Store) EnqueueBatch(ctx context.Context, ds []*delivery.Delivery) error {
	if len(ds) == 0 {
		return nil
	}

	docs := make([]any, 0, len(ds))
	for _, d := range ds {
		docs = append(docs, toDeliveryModel(d))
	}
	if _, err := s.db.Collection(colDeliveries).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("gatehouse/mongo: enqueue: %w", err)
	}
	return nil
}

// Dequeue atomically claims up to limit due deliveries, marking each as
// delivering so concurrent engines never pick up the same record.
func (s *Store) Dequeue(ctx context.Context, at time.Time, limit int) ([]*delivery.Delivery, error) {
	claimed := make([]*delivery.Delivery, 0, limit)

	filter := bson.M{
		"state":           bson.M{"$in": []string{string(delivery.StatePending), string(delivery.StateRetrying)}},
		"next_attempt_at": bson.M{"$lte": at.UTC()},
	}
	update := bson.M{"$set": bson.M{
		"state":      string(delivery.StateDelivering),
		"updated_at": at.UTC(),
	}}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "next_attempt_at", Value: 1}}).
		SetReturnDocument(options.After)

	// One claim per round trip. Batch sizes are small so the extra round
	// trips beat the bookkeeping of a server-side aggregation.
	for len(claimed) < limit {
		var m deliveryModel
		err := s.db.Collection(colDeliveries).FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
		if err != nil {
			if isNoDocuments(err) {
				break
			}
			return nil, fmt.Errorf("gatehouse/mongo: dequeue: %w", err)
		}
		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, d)
	}
	return claimed, nil
}

// UpdateDelivery replaces an existing delivery record.
func (s *Store) UpdateDelivery(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)
	m.UpdatedAt = now()

	res, err := s.db.Collection(colDeliveries).ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("gatehouse/mongo: update delivery: %w", err)
	}
	if res.MatchedCount == 0 {
		return delivery.ErrDeliveryNotFound
	}
	return nil
}

// GetDelivery returns a delivery by record ID.
func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	var m deliveryModel
	err := s.db.Collection(colDeliveries).FindOne(ctx, bson.M{"_id": delID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, delivery.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("gatehouse/mongo: get delivery: %w", err)
	}
	return fromDeliveryModel(&m)
}

// ListByWebhook returns deliveries for a webhook, newest first.
func (s *Store) ListByWebhook(ctx context.Context, whID id.ID, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	return s.listDeliveries(ctx, bson.M{"webhook_id": whID.String()}, opts)
}

// ListByEvent returns deliveries spawned by an event, newest first.
func (s *Store) ListByEvent(ctx context.Context, evtID id.ID) ([]*delivery.Delivery, error) {
	return s.listDeliveries(ctx, bson.M{"event_id": evtID.String()}, delivery.ListOpts{})
}

func (s *Store) listDeliveries(ctx context.Context, filter bson.M, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	if opts.State != nil {
		filter["state"] = string(*opts.State)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colDeliveries).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("gatehouse/mongo: list deliveries: %w", err)
	}

	var models []deliveryModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("gatehouse/mongo: list deliveries: %w", err)
	}

	result := make([]*delivery.Delivery, 0, len(models))
	for i := range models {
		d, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, nil
}

// CountPending returns the number of deliveries waiting for an attempt.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	count, err := s.db.Collection(colDeliveries).CountDocuments(ctx, bson.M{
		"state": bson.M{"$in": []string{string(delivery.StatePending), string(delivery.StateRetrying)}},
	})
	if err != nil {
		return 0, fmt.Errorf("gatehouse/mongo: count pending: %w", err)
	}
	return count, nil
}

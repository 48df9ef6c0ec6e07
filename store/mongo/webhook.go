package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/webhook"
)

// CreateWebhook persists a new webhook.
func (s *Store) CreateWebhook(ctx context.Context, w *webhook.Webhook) error {
	if _, err := s.db.Collection(colWebhooks).InsertOne(ctx, toWebhookModel(w)); err != nil {
		return fmt.Errorf("gatehouse/mongo: create webhook: %w", err)
	}
	return nil
}

// GetWebhook returns a webhook by ID.
func (s *Store) GetWebhook(ctx context.Context, whID id.ID) (*webhook.Webhook, error) {
	var m webhookModel
	err := s.db.Collection(colWebhooks).FindOne(ctx, bson.M{"_id": whID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, webhook.ErrWebhookNotFound
		}
		return nil, fmt.Errorf("gatehouse/mongo: get webhook: %w", err)
	}
	return fromWebhookModel(&m)
}

// UpdateWebhook replaces an existing webhook.
func (s *Store) UpdateWebhook(ctx context.Context, w *webhook.Webhook) error {
	m := toWebhookModel(w)
	m.UpdatedAt = now()

	res, err := s.db.Collection(colWebhooks).ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("gatehouse/mongo: update webhook: %w", err)
	}
	if res.MatchedCount == 0 {
		return webhook.ErrWebhookNotFound
	}
	return nil
}

// DeleteWebhook removes a webhook.
func (s *Store) DeleteWebhook(ctx context.Context, whID id.ID) error {
	res, err := s.db.Collection(colWebhooks).DeleteOne(ctx, bson.M{"_id": whID.String()})
	if err != nil {
		return fmt.Errorf("gatehouse/mongo: delete webhook: %w", err)
	}
	if res.DeletedCount == 0 {
		return webhook.ErrWebhookNotFound
	}
	return nil
}

// ListWebhooks returns webhooks for an owner, oldest first.
func (s *Store) ListWebhooks(ctx context.Context, ownerID string, opts webhook.ListOpts) ([]*webhook.Webhook, error) {
	filter := bson.M{"owner_id": ownerID}
	if opts.Active != nil {
		filter["is_active"] = *opts.Active
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colWebhooks).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("gatehouse/mongo: list webhooks: %w", err)
	}

	var models []webhookModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("gatehouse/mongo: list webhooks: %w", err)
	}

	result := make([]*webhook.Webhook, 0, len(models))
	for i := range models {
		w, err := fromWebhookModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, nil
}

// Resolve finds all active webhooks subscribed to an event name.
func (s *Store) Resolve(ctx context.Context, eventName string) ([]*webhook.Webhook, error) {
	cur, err := s.db.Collection(colWebhooks).Find(ctx, bson.M{
		"events":    eventName,
		"is_active": true,
	})
	if err != nil {
		return nil, fmt.Errorf("gatehouse/mongo: resolve: %w", err)
	}

	var models []webhookModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("gatehouse/mongo: resolve: %w", err)
	}

	result := make([]*webhook.Webhook, 0, len(models))
	for i := range models {
		w, err := fromWebhookModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, nil
}

// CountWebhooks returns the number of webhooks held by an owner.
func (s *Store) CountWebhooks(ctx context.Context, ownerID string) (int, error) {
	count, err := s.db.Collection(colWebhooks).CountDocuments(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return 0, fmt.Errorf("gatehouse/mongo: count webhooks: %w", err)
	}
	return int(count), nil
}

// RecordDeliveryOutcome bumps the webhook's success or failure counter.
func (s *Store) RecordDeliveryOutcome(ctx context.Context, whID id.ID, success bool, at time.Time) error {
	counter := "failure_count"
	set := bson.M{"updated_at": at.UTC()}
	if success {
		counter = "success_count"
		set["last_triggered_at"] = at.UTC()
	}

	res, err := s.db.Collection(colWebhooks).UpdateOne(ctx,
		bson.M{"_id": whID.String()},
		bson.M{
			"$inc": bson.M{counter: 1},
			"$set": set,
		},
	)
	if err != nil {
		return fmt.Errorf("gatehouse/mongo: record outcome: %w", err)
	}
	if res.MatchedCount == 0 {
		return webhook.ErrWebhookNotFound
	}
	return nil
}

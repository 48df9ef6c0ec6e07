package mongo

import (
	"fmt"
	"time"

	"github.com/m3n3sx/gatehouse/apikey"
	"github.com/m3n3sx/gatehouse/delivery"
	"github.com/m3n3sx/gatehouse/event"
	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/internal/entity"
	"github.com/m3n3sx/gatehouse/webhook"
)

// ──────────────────────────────────────────────────
// API keys
// ──────────────────────────────────────────────────

type keyModel struct {
	ID               string            `bson:"_id"`
	OwnerID          string            `bson:"owner_id"`
	DisplayName      string            `bson:"display_name"`
	KeyHash          string            `bson:"key_hash"`
	Permissions      []string          `bson:"permissions"`
	ExpiresAt        *time.Time        `bson:"expires_at,omitempty"`
	LastUsedAt       *time.Time        `bson:"last_used_at,omitempty"`
	UsageCount       int64             `bson:"usage_count"`
	IsActive         bool              `bson:"is_active"`
	AllowedOrigins   []string          `bson:"allowed_origins,omitempty"`
	RateLimitPerHour int               `bson:"rate_limit_per_hour"`
	Metadata         map[string]string `bson:"metadata,omitempty"`
	CreatedAt        time.Time         `bson:"created_at"`
	UpdatedAt        time.Time         `bson:"updated_at"`
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
		Entity:           entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
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

// ──────────────────────────────────────────────────
// Webhooks
// ──────────────────────────────────────────────────

type filterModel struct {
	Field    string `bson:"field"`
	Operator string `bson:"operator"`
	Value    any    `bson:"value"`
}

type webhookModel struct {
	ID              string            `bson:"_id"`
	OwnerID         string            `bson:"owner_id"`
	Name            string            `bson:"name"`
	URL             string            `bson:"url"`
	Events          []string          `bson:"events"`
	Secret          string            `bson:"secret"`
	IsActive        bool              `bson:"is_active"`
	LastTriggeredAt *time.Time        `bson:"last_triggered_at,omitempty"`
	SuccessCount    int64             `bson:"success_count"`
	FailureCount    int64             `bson:"failure_count"`
	Headers         map[string]string `bson:"headers,omitempty"`
	MaxAttempts     int               `bson:"max_attempts"`
	BaseDelaySecs   int               `bson:"base_delay_seconds"`
	Filters         []filterModel     `bson:"filters,omitempty"`
	Metadata        map[string]string `bson:"metadata,omitempty"`
	CreatedAt       time.Time         `bson:"created_at"`
	UpdatedAt       time.Time         `bson:"updated_at"`
}

func toWebhookModel(w *webhook.Webhook) *webhookModel {
	filters := make([]filterModel, 0, len(w.Filters))
	for _, f := range w.Filters {
		filters = append(filters, filterModel{Field: f.Field, Operator: f.Operator, Value: f.Value})
	}
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
		MaxAttempts:     w.RetryPolicy.MaxAttempts,
		BaseDelaySecs:   w.RetryPolicy.BaseDelaySeconds,
		Filters:         filters,
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
	filters := make([]webhook.Filter, 0, len(m.Filters))
	for _, f := range m.Filters {
		filters = append(filters, webhook.Filter{Field: f.Field, Operator: f.Operator, Value: f.Value})
	}
	return &webhook.Webhook{
		Entity:          entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
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
		RetryPolicy: webhook.RetryPolicy{
			MaxAttempts:      m.MaxAttempts,
			BaseDelaySeconds: m.BaseDelaySecs,
		},
		Filters:  filters,
		Metadata: m.Metadata,
	}, nil
}

// ──────────────────────────────────────────────────
// Events
// ──────────────────────────────────────────────────

type eventModel struct {
	ID        string         `bson:"_id"`
	Name      string         `bson:"name"`
	Data      map[string]any `bson:"data,omitempty"`
	Context   map[string]any `bson:"context,omitempty"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
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
		Entity:  entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:      evtID,
		Name:    m.Name,
		Data:    m.Data,
		Context: m.Context,
	}, nil
}

// ──────────────────────────────────────────────────
// Deliveries
// ──────────────────────────────────────────────────

type deliveryModel struct {
	ID             string     `bson:"_id"`
	DeliveryID     string     `bson:"delivery_id"`
	EventID        string     `bson:"event_id"`
	EventName      string     `bson:"event_name"`
	WebhookID      string     `bson:"webhook_id"`
	State          string     `bson:"state"`
	AttemptCount   int        `bson:"attempt_count"`
	MaxAttempts    int        `bson:"max_attempts"`
	BaseDelaySecs  int        `bson:"base_delay_seconds"`
	NextAttemptAt  time.Time  `bson:"next_attempt_at"`
	LastError      string     `bson:"last_error,omitempty"`
	LastStatusCode int        `bson:"last_status_code,omitempty"`
	LastResponse   string     `bson:"last_response,omitempty"`
	LastLatencyMs  int64      `bson:"last_latency_ms,omitempty"`
	CompletedAt    *time.Time `bson:"completed_at,omitempty"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func toDeliveryModel(d *delivery.Delivery) *deliveryModel {
	return &deliveryModel{
		ID:             d.ID.String(),
		DeliveryID:     d.DeliveryID,
		EventID:        d.EventID.String(),
		EventName:      d.EventName,
		WebhookID:      d.WebhookID.String(),
		State:          string(d.State),
		AttemptCount:   d.AttemptCount,
		MaxAttempts:    d.MaxAttempts,
		BaseDelaySecs:  d.BaseDelaySeconds,
		NextAttemptAt:  d.NextAttemptAt,
		LastError:      d.LastError,
		LastStatusCode: d.LastStatusCode,
		LastResponse:   d.LastResponse,
		LastLatencyMs:  d.LastLatencyMs,
		CompletedAt:    d.CompletedAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
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
		Entity:           entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:               delID,
		DeliveryID:       m.DeliveryID,
		EventID:          evtID,
		EventName:        m.EventName,
		WebhookID:        whID,
		State:            delivery.State(m.State),
		AttemptCount:     m.AttemptCount,
		MaxAttempts:      m.MaxAttempts,
		BaseDelaySeconds: m.BaseDelaySecs,
		NextAttemptAt:    m.NextAttemptAt,
		LastError:        m.LastError,
		LastStatusCode:   m.LastStatusCode,
		LastResponse:     m.LastResponse,
		LastLatencyMs:    m.LastLatencyMs,
		CompletedAt:      m.CompletedAt,
	}, nil
}

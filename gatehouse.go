package gatehouse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/m3n3sx/gatehouse/apikey"
	"github.com/m3n3sx/gatehouse/catalog"
	"github.com/m3n3sx/gatehouse/delivery"
	"github.com/m3n3sx/gatehouse/event"
	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/internal/entity"
	"github.com/m3n3sx/gatehouse/ledger"
	"github.com/m3n3sx/gatehouse/observability"
	"github.com/m3n3sx/gatehouse/ratelimit"
	"github.com/m3n3sx/gatehouse/store"
	"github.com/m3n3sx/gatehouse/webhook"
)

// Gatehouse is the root trust-boundary subsystem: API key issuance and
// validation on one side, signed webhook delivery on the other.
type Gatehouse struct {
	config      Config
	store       store.Store
	definitions []catalog.Definition

	catalog    *catalog.Catalog
	limiter    *ratelimit.Limiter
	keySvc     *apikey.Service
	webhookSvc *webhook.Service
	ledgerSvc  *ledger.Service
	engine     *delivery.Engine

	metrics *observability.Metrics
	tracer  *observability.Tracer
	clock   clockwork.Clock
	logger  *slog.Logger
}

// New creates a new Gatehouse with the given options. A store and a hash
// secret are required.
func New(opts ...Option) (*Gatehouse, error) {
	g := &Gatehouse{
		config: DefaultConfig(),
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	if g.store == nil {
		return nil, ErrNoStore
	}
	if g.config.HashSecret == "" {
		return nil, ErrNoHashSecret
	}
	g.wireServices()
	return g, nil
}

// wireServices initializes the internal services after options have been
// applied.
func (g *Gatehouse) wireServices() {
	g.catalog = catalog.New(g.definitions...)

	g.limiter = ratelimit.New(g.store, g.clock, ratelimit.DefaultWindow)

	g.ledgerSvc = ledger.NewService(g.store, ledger.Config{
		MaxEntries: g.config.LedgerMaxEntries,
		MaxAge:     g.config.LedgerMaxAge,
	}, g.clock, g.logger)

	g.keySvc = apikey.NewService(g.store, g.limiter, g.ledgerSvc, apikey.Config{
		HashSecret:      g.config.HashSecret,
		MaxKeysPerOwner: g.config.MaxKeysPerOwner,
		MaxExpiry:       g.config.MaxKeyExpiry,
		Metrics:         g.metrics,
	}, g.clock, g.logger)

	g.webhookSvc = webhook.NewService(g.store, g.catalog,
		delivery.NewProber(g.config.ProbeTimeout),
		webhook.Config{MaxWebhooksPerOwner: g.config.MaxWebhooksPerOwner},
		g.clock, g.logger)

	g.engine = delivery.NewEngine(g.store, g.ledgerSvc, delivery.EngineConfig{
		Concurrency:    g.config.Concurrency,
		PollInterval:   g.config.PollInterval,
		BatchSize:      g.config.BatchSize,
		RequestTimeout: g.config.RequestTimeout,
		Metrics:        g.metrics,
		Tracer:         g.tracer,
	}, g.clock, g.logger)
}

// Start begins the delivery engine.
func (g *Gatehouse) Start(ctx context.Context) {
	g.engine.Start(ctx)
}

// Stop gracefully shuts down the delivery engine.
func (g *Gatehouse) Stop(ctx context.Context) {
	g.engine.Stop(ctx)
}

// Trigger validates and persists an event, then fans out one delivery per
// matching webhook. It returns before any delivery completes.
//
// An event name outside the catalog vocabulary is a silent no-op: trigger
// sites fire unconditionally and subscription interest is not their concern.
// A payload that fails the definition's JSON Schema is an error — that is a
// bug at the trigger site, not a subscription question.
func (g *Gatehouse) Trigger(ctx context.Context, name string, data, evtContext map[string]any) error {
	if !g.catalog.Contains(name) {
		g.logger.DebugContext(ctx, "trigger for unknown event ignored", "event", name)
		return nil
	}

	if err := g.catalog.ValidatePayload(name, data); err != nil {
		return fmt.Errorf("%w: %s", ErrPayloadInvalid, err.Error())
	}

	now := g.clock.Now().UTC()
	evt := &event.Event{
		Entity:  entity.At(now),
		ID:      id.NewEventID(),
		Name:    name,
		Data:    data,
		Context: evtContext,
	}
	if err := g.store.CreateEvent(ctx, evt); err != nil {
		return fmt.Errorf("gatehouse: persist event: %w", err)
	}

	if g.metrics != nil {
		g.metrics.EventsTotal.Inc()
	}

	webhooks, err := g.store.Resolve(ctx, name)
	if err != nil {
		return fmt.Errorf("gatehouse: resolve webhooks: %w", err)
	}

	deliveries := make([]*delivery.Delivery, 0, len(webhooks))
	for _, wh := range webhooks {
		if !wh.Matches(data) {
			continue
		}
		deliveries = append(deliveries, &delivery.Delivery{
			Entity:           entity.At(now),
			ID:               id.NewRecordID(),
			DeliveryID:       uuid.NewString(),
			EventID:          evt.ID,
			EventName:        name,
			WebhookID:        wh.ID,
			State:            delivery.StatePending,
			MaxAttempts:      wh.RetryPolicy.MaxAttempts,
			BaseDelaySeconds: wh.RetryPolicy.BaseDelaySeconds,
			NextAttemptAt:    now,
		})
	}
	if len(deliveries) == 0 {
		return nil
	}

	if err := g.store.EnqueueBatch(ctx, deliveries); err != nil {
		return fmt.Errorf("gatehouse: enqueue deliveries: %w", err)
	}

	if g.metrics != nil {
		g.metrics.PendingDeliveries.Add(float64(len(deliveries)))
	}

	g.logger.DebugContext(ctx, "event triggered",
		"event_id", evt.ID,
		"event", name,
		"deliveries", len(deliveries),
	)

	return nil
}

// RunDeliveriesOnce synchronously processes one batch of due deliveries.
// Hosts without a background engine (short-lived processes, cron-style
// schedulers) call this instead of Start.
func (g *Gatehouse) RunDeliveriesOnce(ctx context.Context) int {
	return g.engine.RunOnce(ctx)
}

// PruneLedger applies the ledger retention bounds and returns the number of
// entries removed.
func (g *Gatehouse) PruneLedger(ctx context.Context) (int64, error) {
	return g.ledgerSvc.Prune(ctx)
}

// Keys returns the API key service.
func (g *Gatehouse) Keys() *apikey.Service {
	return g.keySvc
}

// Webhooks returns the webhook registry service.
func (g *Gatehouse) Webhooks() *webhook.Service {
	return g.webhookSvc
}

// Ledger returns the reliability ledger service.
func (g *Gatehouse) Ledger() *ledger.Service {
	return g.ledgerSvc
}

// Catalog returns the event vocabulary.
func (g *Gatehouse) Catalog() *catalog.Catalog {
	return g.catalog
}

// Store returns the underlying store.
func (g *Gatehouse) Store() store.Store {
	return g.store
}

// Clock returns the injected clock.
func (g *Gatehouse) Clock() clockwork.Clock {
	return g.clock
}

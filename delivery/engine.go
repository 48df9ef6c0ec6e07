package delivery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"

	"github.com/m3n3sx/gatehouse/event"
	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/observability"
	"github.com/m3n3sx/gatehouse/webhook"
)

// EngineStore is the interface the engine needs for delivery operations.
type EngineStore interface {
	Dequeue(ctx context.Context, now time.Time, limit int) ([]*Delivery, error)
	UpdateDelivery(ctx context.Context, d *Delivery) error
	GetWebhook(ctx context.Context, whID id.ID) (*webhook.Webhook, error)
	GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error)
	RecordDeliveryOutcome(ctx context.Context, whID id.ID, success bool, at time.Time) error
}

// Recorder receives an entry for every completed attempt. Suppressed
// deliveries are not recorded; nothing is bookkept against a deleted
// or disabled webhook.
type Recorder interface {
	RecordAttempt(ctx context.Context, d *Delivery, res Result) error
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	Concurrency    int
	PollInterval   time.Duration
	BatchSize      int
	RequestTimeout time.Duration
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
}

// Engine is the delivery worker pool that dequeues and processes deliveries.
type Engine struct {
	store    EngineStore
	sender   *Sender
	retrier  *Retrier
	recorder Recorder
	config   EngineConfig
	clock    clockwork.Clock
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a delivery engine. A nil recorder disables attempt
// logging; a nil clock uses the wall clock.
func NewEngine(store EngineStore, recorder Recorder, cfg EngineConfig, clock clockwork.Clock, logger *slog.Logger) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		sender:   NewSender(cfg.RequestTimeout),
		retrier:  NewRetrier(),
		recorder: recorder,
		config:   cfg,
		clock:    clock,
		logger:   logger,
	}
}

// Start begins the delivery workers and poll loop.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()
}

// Stop cancels the poll loop and waits for in-flight deliveries to complete.
func (e *Engine) Stop(_ context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// RunOnce dequeues due deliveries and processes them inline, returning
// the number processed. It is the synchronous core of the poll loop.
func (e *Engine) RunOnce(ctx context.Context) int {
	batch, err := e.store.Dequeue(ctx, e.clock.Now().UTC(), e.config.BatchSize)
	if err != nil {
		e.logger.ErrorContext(ctx, "dequeue failed", "error", err)
		return 0
	}
	for _, d := range batch {
		e.process(ctx, d)
	}
	return len(batch)
}

// pollLoop periodically dequeues due deliveries and dispatches them to workers.
func (e *Engine) pollLoop(ctx context.Context) {
	ticker := e.clock.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, e.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			batch, err := e.store.Dequeue(ctx, e.clock.Now().UTC(), e.config.BatchSize)
			if err != nil {
				e.logger.ErrorContext(ctx, "dequeue failed", "error", err)
				continue
			}

			for _, d := range batch {
				select {
				case <-ctx.Done():
					return
				case sem <- struct{}{}:
				}

				e.wg.Add(1)
				go func(del *Delivery) {
					defer e.wg.Done()
					defer func() { <-sem }()
					e.process(ctx, del)
				}(d)
			}
		}
	}
}

// process handles a single claimed delivery: re-check the webhook,
// send, decide, record, update.
func (e *Engine) process(ctx context.Context, d *Delivery) {
	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartDeliverySpan(ctx, d.DeliveryID, d.EventID.String(), d.WebhookID.String())
	}

	wh, err := e.store.GetWebhook(ctx, d.WebhookID)
	if err != nil || !wh.IsActive {
		// The webhook was deleted or disabled after this delivery was
		// scheduled. Suppress instead of failing: no attempt is made
		// and no success/failure counter moves.
		if err != nil && !errors.Is(err, webhook.ErrWebhookNotFound) {
			e.logger.ErrorContext(ctx, "get webhook failed",
				"delivery_id", d.DeliveryID, "webhook_id", d.WebhookID, "error", err)
			if span != nil {
				e.config.Tracer.EndDeliverySpan(span, 0, 0, err.Error())
			}
			return
		}
		e.suppress(ctx, d, span)
		return
	}

	evt, err := e.store.GetEvent(ctx, d.EventID)
	if err != nil {
		e.logger.ErrorContext(ctx, "get event failed",
			"delivery_id", d.DeliveryID, "event_id", d.EventID, "error", err)
		if span != nil {
			e.config.Tracer.EndDeliverySpan(span, 0, 0, err.Error())
		}
		e.suppress(ctx, d, nil)
		return
	}

	now := e.clock.Now().UTC()
	d.AttemptCount++
	env := BuildEnvelope(evt, d.WebhookID, d.DeliveryID, now)
	result := e.sender.Send(ctx, wh, env, now)

	d.LastStatusCode = result.StatusCode
	d.LastResponse = result.Body
	d.LastLatencyMs = result.Latency.Milliseconds()
	d.LastError = ""
	if result.Err != nil {
		d.LastError = result.Err.Error()
	} else if !result.Success() {
		d.LastError = "non-2xx response"
	}

	latencySeconds := result.Latency.Seconds()

	switch e.retrier.Decide(result, d) {
	case Succeeded:
		done := e.clock.Now().UTC()
		d.State = StateSucceeded
		d.CompletedAt = &done
		if err := e.store.RecordDeliveryOutcome(ctx, d.WebhookID, true, done); err != nil {
			e.logger.WarnContext(ctx, "record outcome failed",
				"webhook_id", d.WebhookID, "error", err)
		}
		if e.config.Metrics != nil {
			e.config.Metrics.RecordDelivery("succeeded", latencySeconds)
			e.config.Metrics.PendingDeliveries.Dec()
		}
		e.logger.DebugContext(ctx, "delivered",
			"delivery_id", d.DeliveryID, "status", result.StatusCode, "latency_ms", d.LastLatencyMs)

	case Retry:
		d.State = StateRetrying
		d.NextAttemptAt = e.clock.Now().UTC().Add(e.retrier.Backoff(d))
		if e.config.Metrics != nil {
			e.config.Metrics.RecordDelivery("retried", latencySeconds)
		}
		e.logger.DebugContext(ctx, "retry scheduled",
			"delivery_id", d.DeliveryID, "attempt", d.AttemptCount, "next_at", d.NextAttemptAt)

	case Exhausted:
		done := e.clock.Now().UTC()
		d.State = StateExhausted
		d.CompletedAt = &done
		if err := e.store.RecordDeliveryOutcome(ctx, d.WebhookID, false, done); err != nil {
			e.logger.WarnContext(ctx, "record outcome failed",
				"webhook_id", d.WebhookID, "error", err)
		}
		if e.config.Metrics != nil {
			e.config.Metrics.RecordDelivery("exhausted", latencySeconds)
			e.config.Metrics.PendingDeliveries.Dec()
		}
		e.logger.WarnContext(ctx, "delivery exhausted",
			"delivery_id", d.DeliveryID, "webhook_id", d.WebhookID,
			"attempts", d.AttemptCount, "status", result.StatusCode, "error", d.LastError)
	}

	if e.recorder != nil {
		if recErr := e.recorder.RecordAttempt(ctx, d, result); recErr != nil {
			e.logger.ErrorContext(ctx, "record attempt failed",
				"delivery_id", d.DeliveryID, "error", recErr)
		}
	}

	if span != nil {
		e.config.Tracer.EndDeliverySpan(span, d.LastStatusCode, d.LastLatencyMs, d.LastError)
	}

	if updateErr := e.store.UpdateDelivery(ctx, d); updateErr != nil {
		e.logger.ErrorContext(ctx, "update delivery failed",
			"delivery_id", d.DeliveryID, "error", updateErr)
	}
}

// suppress terminates a delivery without an attempt.
func (e *Engine) suppress(ctx context.Context, d *Delivery, span trace.Span) {
	now := e.clock.Now().UTC()
	d.State = StateSuppressed
	d.CompletedAt = &now
	if e.config.Metrics != nil {
		e.config.Metrics.RecordDelivery("suppressed", 0)
		e.config.Metrics.PendingDeliveries.Dec()
	}
	e.logger.DebugContext(ctx, "delivery suppressed",
		"delivery_id", d.DeliveryID, "webhook_id", d.WebhookID)
	if span != nil {
		e.config.Tracer.EndDeliverySpan(span, 0, 0, "suppressed")
	}
	if err := e.store.UpdateDelivery(ctx, d); err != nil {
		e.logger.ErrorContext(ctx, "update delivery failed",
			"delivery_id", d.DeliveryID, "error", err)
	}
}

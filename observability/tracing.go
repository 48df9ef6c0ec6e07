package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/m3n3sx/gatehouse"

// Tracer provides OpenTelemetry tracing for Gatehouse.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Gatehouse tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartDeliverySpan starts a new span for a delivery attempt.
func (t *Tracer) StartDeliverySpan(ctx context.Context, deliveryID, eventID, webhookID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "gatehouse.delivery",
		trace.WithAttributes(
			attribute.String("gatehouse.delivery_id", deliveryID),
			attribute.String("gatehouse.event_id", eventID),
			attribute.String("gatehouse.webhook_id", webhookID),
		),
	)
}

// EndDeliverySpan ends a delivery span with result attributes.
func (t *Tracer) EndDeliverySpan(span trace.Span, statusCode int, latencyMs int64, err string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int64("gatehouse.latency_ms", latencyMs),
	)
	if err != "" {
		span.SetAttributes(attribute.String("gatehouse.error", err))
	}
	span.End()
}

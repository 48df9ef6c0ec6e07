package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for Gatehouse, backed by any go-utils
// MetricFactory the host supplies.
type Metrics struct {
	KeysIssuedTotal   gu.Counter
	ValidationsTotal  gu.Counter
	EventsTotal       gu.Counter
	DeliveriesTotal   gu.Counter
	DeliveryLatency   gu.Histogram
	PendingDeliveries gu.Gauge
	LedgerSize        gu.Gauge
}

// NewMetrics creates Gatehouse metric instruments using the supplied factory.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		KeysIssuedTotal:   factory.Counter("gatehouse_keys_issued_total"),
		ValidationsTotal:  factory.Counter("gatehouse_key_validations_total"),
		EventsTotal:       factory.Counter("gatehouse_events_total"),
		DeliveriesTotal:   factory.Counter("gatehouse_deliveries_total"),
		DeliveryLatency:   factory.Histogram("gatehouse_delivery_latency_seconds"),
		PendingDeliveries: factory.Gauge("gatehouse_pending_deliveries"),
		LedgerSize:        factory.Gauge("gatehouse_ledger_entries"),
	}
}

// RecordValidation records a key validation attempt with its outcome.
func (m *Metrics) RecordValidation(result string) {
	m.ValidationsTotal.WithLabels(map[string]string{"result": result}).Inc()
}

// RecordDelivery records a delivery attempt with the given status and latency.
func (m *Metrics) RecordDelivery(status string, latencySeconds float64) {
	m.DeliveriesTotal.WithLabels(map[string]string{"status": status}).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}

package gatehouse

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/m3n3sx/gatehouse/catalog"
	"github.com/m3n3sx/gatehouse/observability"
	"github.com/m3n3sx/gatehouse/store"
)

// Option configures a Gatehouse instance.
type Option func(*Gatehouse) error

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(g *Gatehouse) error {
		g.store = s
		return nil
	}
}

// WithHashSecret sets the secret that keys credential hashing.
func WithHashSecret(secret string) Option {
	return func(g *Gatehouse) error {
		g.config.HashSecret = secret
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gatehouse) error {
		g.logger = logger
		return nil
	}
}

// WithClock injects the clock used for expiry, rate-limit windows, and
// retry scheduling. Tests pass a clockwork fake clock.
func WithClock(clock clockwork.Clock) Option {
	return func(g *Gatehouse) error {
		g.clock = clock
		return nil
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Gatehouse) error {
		g.metrics = m
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for delivery spans.
func WithTracer(t *observability.Tracer) Option {
	return func(g *Gatehouse) error {
		g.tracer = t
		return nil
	}
}

// WithDefinitions extends the built-in event vocabulary. A definition with
// a built-in name replaces it, e.g. to attach a payload schema.
func WithDefinitions(defs ...catalog.Definition) Option {
	return func(g *Gatehouse) error {
		g.definitions = append(g.definitions, defs...)
		return nil
	}
}

// WithMaxKeysPerOwner caps active API keys per owner.
func WithMaxKeysPerOwner(n int) Option {
	return func(g *Gatehouse) error {
		g.config.MaxKeysPerOwner = n
		return nil
	}
}

// WithMaxWebhooksPerOwner caps registered webhooks per owner.
func WithMaxWebhooksPerOwner(n int) Option {
	return func(g *Gatehouse) error {
		g.config.MaxWebhooksPerOwner = n
		return nil
	}
}

// WithProbeTimeout sets the HTTP timeout for the registration probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(g *Gatehouse) error {
		g.config.ProbeTimeout = d
		return nil
	}
}

// WithConcurrency sets the number of delivery worker goroutines.
func WithConcurrency(n int) Option {
	return func(g *Gatehouse) error {
		g.config.Concurrency = n
		return nil
	}
}

// WithPollInterval sets how often the engine checks for due deliveries.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gatehouse) error {
		g.config.PollInterval = d
		return nil
	}
}

// WithBatchSize sets the maximum number of deliveries claimed per poll cycle.
func WithBatchSize(n int) Option {
	return func(g *Gatehouse) error {
		g.config.BatchSize = n
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per delivery attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(g *Gatehouse) error {
		g.config.RequestTimeout = d
		return nil
	}
}

// WithLedgerRetention bounds the reliability ledger by count and age.
func WithLedgerRetention(maxEntries int, maxAge time.Duration) Option {
	return func(g *Gatehouse) error {
		g.config.LedgerMaxEntries = maxEntries
		g.config.LedgerMaxAge = maxAge
		return nil
	}
}

package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/m3n3sx/gatehouse/delivery"
	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/internal/entity"
)

const (
	// DefaultMaxEntries bounds the ledger by count.
	DefaultMaxEntries = 1000

	// DefaultMaxAge bounds the ledger by age.
	DefaultMaxAge = 30 * 24 * time.Hour
)

// Config holds ledger retention settings.
type Config struct {
	MaxEntries int
	MaxAge     time.Duration
}

// Service maintains the reliability ledger: a bounded log of delivery
// attempts and rejected-credential audit entries. It implements
// delivery.Recorder and the API key service's audit sink.
type Service struct {
	store  Store
	config Config
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewService creates a ledger service. A nil clock uses the wall clock.
func NewService(store Store, cfg Config, clock clockwork.Clock, logger *slog.Logger) *Service {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		config: cfg,
		clock:  clock,
		logger: logger,
	}
}

// RecordAttempt appends a delivery attempt entry. Implements delivery.Recorder.
func (svc *Service) RecordAttempt(ctx context.Context, d *delivery.Delivery, res delivery.Result) error {
	now := svc.clock.Now().UTC()
	e := &Entry{
		Entity:     entity.At(now),
		ID:         id.NewAttemptID(),
		Kind:       KindAttempt,
		OccurredAt: now,
		DeliveryID: d.DeliveryID,
		WebhookID:  d.WebhookID,
		EventID:    d.EventID,
		EventName:  d.EventName,
		Attempt:    d.AttemptCount,
		Success:    res.Success(),
		StatusCode: res.StatusCode,
		LatencyMs:  res.Latency.Milliseconds(),
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	} else if !res.Success() {
		e.Error = fmt.Sprintf("endpoint returned status %d", res.StatusCode)
	}
	return svc.append(ctx, e)
}

// InvalidCredentialAttempt appends an audit entry for a credential
// that matched no stored key.
func (svc *Service) InvalidCredentialAttempt(ctx context.Context, origin string) {
	now := svc.clock.Now().UTC()
	e := &Entry{
		Entity:     entity.At(now),
		ID:         id.NewAuditID(),
		Kind:       KindAudit,
		OccurredAt: now,
		Origin:     origin,
	}
	if err := svc.append(ctx, e); err != nil {
		svc.logger.ErrorContext(ctx, "append audit entry failed", "error", err)
	}
}

func (svc *Service) append(ctx context.Context, e *Entry) error {
	if err := svc.store.AppendLedger(ctx, e); err != nil {
		return fmt.Errorf("ledger: append: %w", err)
	}
	cutoff := svc.clock.Now().UTC().Add(-svc.config.MaxAge)
	if _, err := svc.store.PruneLedger(ctx, svc.config.MaxEntries, cutoff); err != nil {
		svc.logger.WarnContext(ctx, "ledger prune failed", "error", err)
	}
	return nil
}

// List returns ledger entries matching the given options, newest first.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return svc.store.ListLedger(ctx, opts)
}

// Count returns the total number of ledger entries.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	return svc.store.CountLedger(ctx)
}

// Prune applies the retention policy immediately and returns the
// number of entries removed.
func (svc *Service) Prune(ctx context.Context) (int64, error) {
	cutoff := svc.clock.Now().UTC().Add(-svc.config.MaxAge)
	return svc.store.PruneLedger(ctx, svc.config.MaxEntries, cutoff)
}

// Stats aggregates the current ledger contents. The ledger is bounded,
// so a full scan stays cheap.
func (svc *Service) Stats(ctx context.Context) (*Stats, error) {
	entries, err := svc.store.ListLedger(ctx, ListOpts{Limit: svc.config.MaxEntries})
	if err != nil {
		return nil, err
	}
	stats := &Stats{TotalEntries: int64(len(entries))}
	for _, e := range entries {
		switch e.Kind {
		case KindAttempt:
			stats.Attempts++
			if e.Success {
				stats.Succeeded++
			} else {
				stats.Failed++
			}
		case KindAudit:
			stats.InvalidKeyAttempts++
		}
	}
	return stats, nil
}

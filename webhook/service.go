package webhook

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/m3n3sx/gatehouse/actor"
	"github.com/m3n3sx/gatehouse/id"
	"github.com/m3n3sx/gatehouse/internal/entity"
	"github.com/m3n3sx/gatehouse/signature"
)

// reservedHeaders are stripped from custom header maps at registration so a
// subscription can never override the signed delivery headers.
var reservedHeaders = map[string]bool{
	"authorization": true,
	"content-type":  true,
	"user-agent":    true,
	"x-signature":   true,
	"x-event":       true,
	"x-delivery-id": true,
	"x-timestamp":   true,
}

// Vocabulary answers whether an event name is part of the supported set.
// Satisfied by *catalog.Catalog.
type Vocabulary interface {
	Contains(name string) bool
}

// Prober performs the synchronous connectivity check against a candidate
// URL before anything is persisted. Satisfied by delivery.Prober.
type Prober interface {
	Probe(ctx context.Context, targetURL, secret string, headers map[string]string) error
}

// Config holds the registry configuration.
type Config struct {
	// MaxWebhooksPerOwner caps registered webhooks per owner.
	MaxWebhooksPerOwner int
}

// Service provides webhook registry operations.
type Service struct {
	store  Store
	vocab  Vocabulary
	prober Prober
	config Config
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewService creates a webhook registry service. A nil prober skips the
// connectivity probe (tests); a nil clock uses the real clock.
func NewService(store Store, vocab Vocabulary, prober Prober, cfg Config, clock clockwork.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		vocab:  vocab,
		prober: prober,
		config: cfg,
		clock:  clock,
		logger: logger,
	}
}

// Create registers a new webhook and returns it together with the signing
// secret, which is shown exactly once. The connectivity probe runs before
// anything is persisted; probe failure aborts the creation.
func (svc *Service) Create(ctx context.Context, in Input) (*Webhook, string, error) {
	if in.OwnerID == "" {
		return nil, "", &ValidationError{Field: "owner_id", Message: "required"}
	}
	if err := validateURL(in.URL); err != nil {
		return nil, "", err
	}
	if err := svc.validateEvents(in.Events); err != nil {
		return nil, "", err
	}
	if err := validateFilters(in.Filters); err != nil {
		return nil, "", err
	}

	count, err := svc.store.CountWebhooks(ctx, in.OwnerID)
	if err != nil {
		return nil, "", err
	}
	if count >= svc.config.MaxWebhooksPerOwner {
		return nil, "", &QuotaExceededError{OwnerID: in.OwnerID, Limit: svc.config.MaxWebhooksPerOwner}
	}

	secret := signature.GenerateSecret()
	headers := stripReservedHeaders(in.Headers)

	if err := svc.probe(ctx, in.URL, secret, headers); err != nil {
		return nil, "", err
	}

	policy := DefaultRetryPolicy
	if in.RetryPolicy != nil {
		policy = normalizePolicy(*in.RetryPolicy)
	}

	w := &Webhook{
		Entity:      entity.At(svc.clock.Now()),
		ID:          id.NewWebhookID(),
		OwnerID:     in.OwnerID,
		Name:        in.Name,
		URL:         in.URL,
		Events:      in.Events,
		Secret:      secret,
		IsActive:    true,
		Headers:     headers,
		RetryPolicy: policy,
		Filters:     in.Filters,
		Metadata:    in.Metadata,
	}

	if err := svc.store.CreateWebhook(ctx, w); err != nil {
		return nil, "", err
	}

	svc.logger.InfoContext(ctx, "webhook created",
		"webhook_id", w.ID,
		"owner_id", w.OwnerID,
		"url", w.URL,
		"events", strings.Join(w.Events, ","),
	)

	return w, secret, nil
}

// Get returns a webhook. Requires ownership or the admin permission.
func (svc *Service) Get(ctx context.Context, whID id.ID, act actor.Actor) (*Webhook, error) {
	w, err := svc.store.GetWebhook(ctx, whID)
	if err != nil {
		return nil, err
	}
	if err := act.Authorize(w.OwnerID); err != nil {
		return nil, err
	}
	return w, nil
}

// Update modifies an existing webhook. A URL change re-runs the connectivity
// probe; probe failure leaves the stored record untouched. Requires
// ownership or the admin permission.
func (svc *Service) Update(ctx context.Context, whID id.ID, in Input, act actor.Actor) (*Webhook, error) {
	w, err := svc.store.GetWebhook(ctx, whID)
	if err != nil {
		return nil, err
	}
	if err := act.Authorize(w.OwnerID); err != nil {
		return nil, err
	}

	if in.URL != "" && in.URL != w.URL {
		if err := validateURL(in.URL); err != nil {
			return nil, err
		}
		if err := svc.probe(ctx, in.URL, w.Secret, w.Headers); err != nil {
			return nil, err
		}
		w.URL = in.URL
	}
	if in.Name != "" {
		w.Name = in.Name
	}
	if len(in.Events) > 0 {
		if err := svc.validateEvents(in.Events); err != nil {
			return nil, err
		}
		w.Events = in.Events
	}
	if in.Headers != nil {
		w.Headers = stripReservedHeaders(in.Headers)
	}
	if in.Filters != nil {
		if err := validateFilters(in.Filters); err != nil {
			return nil, err
		}
		w.Filters = in.Filters
	}
	if in.RetryPolicy != nil {
		w.RetryPolicy = normalizePolicy(*in.RetryPolicy)
	}
	if in.Metadata != nil {
		w.Metadata = in.Metadata
	}
	w.UpdatedAt = svc.clock.Now().UTC()

	if err := svc.store.UpdateWebhook(ctx, w); err != nil {
		return nil, err
	}

	return w, nil
}

// Delete removes a webhook. Requires ownership or the admin permission.
// Any retries already scheduled for it are suppressed by the delivery
// engine's pre-send re-check.
func (svc *Service) Delete(ctx context.Context, whID id.ID, act actor.Actor) error {
	w, err := svc.store.GetWebhook(ctx, whID)
	if err != nil {
		return err
	}
	if err := act.Authorize(w.OwnerID); err != nil {
		return err
	}

	if err := svc.store.DeleteWebhook(ctx, whID); err != nil {
		return err
	}

	svc.logger.InfoContext(ctx, "webhook deleted", "webhook_id", whID, "deleted_by", act.OwnerID)
	return nil
}

// List returns webhooks owned by ownerID. Requires ownership or the admin
// permission.
func (svc *Service) List(ctx context.Context, ownerID string, act actor.Actor, opts ListOpts) ([]*Webhook, error) {
	if err := act.Authorize(ownerID); err != nil {
		return nil, err
	}
	return svc.store.ListWebhooks(ctx, ownerID, opts)
}

// SetActive enables or disables a webhook without deleting it. Requires
// ownership or the admin permission.
func (svc *Service) SetActive(ctx context.Context, whID id.ID, active bool, act actor.Actor) error {
	w, err := svc.store.GetWebhook(ctx, whID)
	if err != nil {
		return err
	}
	if err := act.Authorize(w.OwnerID); err != nil {
		return err
	}

	w.IsActive = active
	w.UpdatedAt = svc.clock.Now().UTC()
	return svc.store.UpdateWebhook(ctx, w)
}

// RotateSecret generates a new signing secret for a webhook and returns it
// exactly once. Requires ownership or the admin permission.
func (svc *Service) RotateSecret(ctx context.Context, whID id.ID, act actor.Actor) (string, error) {
	w, err := svc.store.GetWebhook(ctx, whID)
	if err != nil {
		return "", err
	}
	if err := act.Authorize(w.OwnerID); err != nil {
		return "", err
	}

	w.Secret = signature.GenerateSecret()
	w.UpdatedAt = svc.clock.Now().UTC()
	if err := svc.store.UpdateWebhook(ctx, w); err != nil {
		return "", err
	}

	return w.Secret, nil
}

func (svc *Service) probe(ctx context.Context, targetURL, secret string, headers map[string]string) error {
	if svc.prober == nil {
		return nil
	}
	if err := svc.prober.Probe(ctx, targetURL, secret, headers); err != nil {
		svc.logger.WarnContext(ctx, "connectivity probe failed", "url", targetURL, "error", err)
		return err
	}
	return nil
}

func (svc *Service) validateEvents(events []string) error {
	if len(events) == 0 {
		return ErrInvalidEvents
	}
	for _, e := range events {
		if !svc.vocab.Contains(e) {
			return ErrInvalidEvents
		}
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &ValidationError{Field: "url", Message: "must be an absolute http(s) URL"}
	}
	return nil
}

func validateFilters(filters []Filter) error {
	for _, f := range filters {
		if !f.Valid() {
			return &ValidationError{Field: "filters", Message: "each filter needs a field and a supported operator"}
		}
	}
	return nil
}

func stripReservedHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if reservedHeaders[strings.ToLower(k)] {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizePolicy(p RetryPolicy) RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseDelaySeconds <= 0 {
		p.BaseDelaySeconds = DefaultRetryPolicy.BaseDelaySeconds
	}
	return p
}

// Delay returns the backoff before the given attempt number fires again:
// base · 2^(attempt-1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(p.BaseDelaySeconds) * time.Second << (attempt - 1)
}

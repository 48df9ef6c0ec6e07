package webhook_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m3n3sx/gatehouse/actor"
	"github.com/m3n3sx/gatehouse/catalog"
	"github.com/m3n3sx/gatehouse/store/memory"
	"github.com/m3n3sx/gatehouse/webhook"
)

func ctx() context.Context { return context.Background() }

// okProber accepts every probe; failProber rejects every probe.
type okProber struct{ probes int }

func (p *okProber) Probe(context.Context, string, string, map[string]string) error {
	p.probes++
	return nil
}

type failProber struct{}

func (failProber) Probe(context.Context, string, string, map[string]string) error {
	return webhook.ErrEndpointUnreachable
}

func newService(t *testing.T, prober webhook.Prober) (*webhook.Service, *memory.Store) {
	t.Helper()
	s := memory.New()
	svc := webhook.NewService(s, catalog.New(), prober, webhook.Config{MaxWebhooksPerOwner: 20}, nil, nil)
	return svc, s
}

func owner(ownerID string) actor.Actor {
	return actor.Actor{OwnerID: ownerID, Permissions: []string{"manage_webhooks"}}
}

func TestCreateWebhook(t *testing.T) {
	prober := &okProber{}
	svc, _ := newService(t, prober)

	w, secret, err := svc.Create(ctx(), webhook.Input{
		OwnerID: "owner-1",
		Name:    "ci hook",
		URL:     "https://example.com/hook",
		Events:  []string{"settings.updated", "backup.created"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if w.ID.String() == "" {
		t.Fatal("expected non-empty ID")
	}
	if !strings.HasPrefix(secret, "whsec_") {
		t.Fatalf("expected generated secret, got %q", secret)
	}
	if !w.IsActive {
		t.Fatal("expected active by default")
	}
	if w.RetryPolicy != webhook.DefaultRetryPolicy {
		t.Fatalf("expected default retry policy, got %+v", w.RetryPolicy)
	}
	if prober.probes != 1 {
		t.Fatalf("expected exactly one probe, got %d", prober.probes)
	}
}

func TestCreateWebhookValidation(t *testing.T) {
	svc, _ := newService(t, &okProber{})

	// Relative URL.
	_, _, err := svc.Create(ctx(), webhook.Input{
		OwnerID: "o", URL: "/hook", Events: []string{"settings.updated"},
	})
	var verr *webhook.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for relative URL, got %v", err)
	}

	// Empty events.
	_, _, err = svc.Create(ctx(), webhook.Input{
		OwnerID: "o", URL: "https://example.com",
	})
	if !errors.Is(err, webhook.ErrInvalidEvents) {
		t.Fatalf("expected ErrInvalidEvents, got %v", err)
	}

	// Event outside the vocabulary.
	_, _, err = svc.Create(ctx(), webhook.Input{
		OwnerID: "o", URL: "https://example.com", Events: []string{"invoice.created"},
	})
	if !errors.Is(err, webhook.ErrInvalidEvents) {
		t.Fatalf("expected ErrInvalidEvents for unknown event, got %v", err)
	}
}

func TestCreateWebhookProbeFailureNothingPersisted(t *testing.T) {
	svc, s := newService(t, failProber{})

	_, _, err := svc.Create(ctx(), webhook.Input{
		OwnerID: "owner-1",
		URL:     "https://unreachable.example.com/hook",
		Events:  []string{"settings.updated"},
	})
	if !errors.Is(err, webhook.ErrEndpointUnreachable) {
		t.Fatalf("expected ErrEndpointUnreachable, got %v", err)
	}

	count, err := s.CountWebhooks(ctx(), "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("probe failure must persist nothing, found %d webhooks", count)
	}
}

func TestCreateWebhookQuota(t *testing.T) {
	s := memory.New()
	svc := webhook.NewService(s, catalog.New(), &okProber{}, webhook.Config{MaxWebhooksPerOwner: 2}, nil, nil)

	for i := 0; i < 2; i++ {
		_, _, err := svc.Create(ctx(), webhook.Input{
			OwnerID: "owner-1", URL: "https://example.com/hook", Events: []string{"settings.updated"},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	_, _, err := svc.Create(ctx(), webhook.Input{
		OwnerID: "owner-1", URL: "https://example.com/hook", Events: []string{"settings.updated"},
	})
	var qerr *webhook.QuotaExceededError
	if !errors.As(err, &qerr) {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if qerr.Limit != 2 {
		t.Errorf("quota error carries wrong limit: %+v", qerr)
	}
}

func TestCreateWebhookStripsReservedHeaders(t *testing.T) {
	svc, _ := newService(t, &okProber{})

	w, _, err := svc.Create(ctx(), webhook.Input{
		OwnerID: "owner-1",
		URL:     "https://example.com/hook",
		Events:  []string{"settings.updated"},
		Headers: map[string]string{
			"Authorization": "Bearer sneak",
			"X-Signature":   "forged",
			"Content-Type":  "text/plain",
			"X-Team":        "styling",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(w.Headers) != 1 || w.Headers["X-Team"] != "styling" {
		t.Fatalf("reserved headers not stripped: %v", w.Headers)
	}
}

func TestUpdateWebhookURLChangeReprobes(t *testing.T) {
	prober := &okProber{}
	svc, _ := newService(t, prober)

	w, _, err := svc.Create(ctx(), webhook.Input{
		OwnerID: "owner-1", URL: "https://example.com/hook", Events: []string{"settings.updated"},
	})
	if err != nil {
		t.Fatal(err)
	}

	// Update without URL change: no probe.
	if _, err := svc.Update(ctx(), w.ID, webhook.Input{Name: "renamed"}, owner("owner-1")); err != nil {
		t.Fatal(err)
	}
	if prober.probes != 1 {
		t.Fatalf("no-URL update must not probe, got %d probes", prober.probes)
	}

	// URL change probes again.
	if _, err := svc.Update(ctx(), w.ID, webhook.Input{URL: "https://example.org/hook2"}, owner("owner-1")); err != nil {
		t.Fatal(err)
	}
	if prober.probes != 2 {
		t.Fatalf("URL change should re-probe, got %d probes", prober.probes)
	}
}

func TestWebhookOwnership(t *testing.T) {
	svc, _ := newService(t, &okProber{})

	w, _, err := svc.Create(ctx(), webhook.Input{
		OwnerID: "owner-1", URL: "https://example.com/hook", Events: []string{"settings.updated"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx(), w.ID, owner("intruder")); !errors.Is(err, actor.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner delete, got %v", err)
	}

	// Admin may manage anyone's webhook.
	admin := actor.Actor{OwnerID: "ops", Permissions: []string{actor.Admin}}
	if err := svc.Delete(ctx(), w.ID, admin); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Get(ctx(), w.ID, owner("owner-1")); !errors.Is(err, webhook.ErrWebhookNotFound) {
		t.Fatalf("expected ErrWebhookNotFound after delete, got %v", err)
	}
}

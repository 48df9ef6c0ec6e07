package gatehouse_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jonboulle/clockwork"

	gatehouse "github.com/m3n3sx/gatehouse"
	"github.com/m3n3sx/gatehouse/apikey"
	"github.com/m3n3sx/gatehouse/catalog"
	"github.com/m3n3sx/gatehouse/delivery"
	"github.com/m3n3sx/gatehouse/ledger"
	"github.com/m3n3sx/gatehouse/store/memory"
	"github.com/m3n3sx/gatehouse/webhook"
)

const testHashSecret = "test-hash-secret"

func ctx() context.Context { return context.Background() }

func setup(t *testing.T, opts ...gatehouse.Option) (*gatehouse.Gatehouse, *memory.Store) {
	t.Helper()
	s := memory.New()
	opts = append([]gatehouse.Option{
		gatehouse.WithStore(s),
		gatehouse.WithHashSecret(testHashSecret),
		gatehouse.WithClock(clockwork.NewFakeClock()),
	}, opts...)
	gh, err := gatehouse.New(opts...)
	if err != nil {
		t.Fatal(err)
	}
	return gh, s
}

// receiver is an httptest endpoint that accepts probes and deliveries.
func receiver(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Event") != catalog.TestEvent {
			hits.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func register(t *testing.T, gh *gatehouse.Gatehouse, url string, events []string, filters []webhook.Filter) *webhook.Webhook {
	t.Helper()
	wh, _, err := gh.Webhooks().Create(ctx(), webhook.Input{
		OwnerID: "owner-1",
		Name:    "test hook",
		URL:     url,
		Events:  events,
		Filters: filters,
	})
	if err != nil {
		t.Fatal(err)
	}
	return wh
}

func TestNewRequiresStore(t *testing.T) {
	_, err := gatehouse.New(gatehouse.WithHashSecret(testHashSecret))
	if !errors.Is(err, gatehouse.ErrNoStore) {
		t.Fatalf("err = %v, want ErrNoStore", err)
	}
}

func TestNewRequiresHashSecret(t *testing.T) {
	_, err := gatehouse.New(gatehouse.WithStore(memory.New()))
	if !errors.Is(err, gatehouse.ErrNoHashSecret) {
		t.Fatalf("err = %v, want ErrNoHashSecret", err)
	}
}

func TestTriggerUnknownEventIsNoOp(t *testing.T) {
	gh, s := setup(t)

	if err := gh.Trigger(ctx(), "bogus.event", map[string]any{"x": 1}, nil); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	pending, err := s.CountPending(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if pending != 0 {
		t.Fatalf("pending = %d, want 0", pending)
	}
}

func TestTriggerFansOutToMatchingWebhooks(t *testing.T) {
	gh, s := setup(t)
	srv, _ := receiver(t)

	register(t, gh, srv.URL, []string{"settings.updated"}, nil)
	register(t, gh, srv.URL, []string{"theme.applied"}, nil)

	if err := gh.Trigger(ctx(), "settings.updated", map[string]any{"section": "colors"}, nil); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	pending, err := s.CountPending(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if pending != 1 {
		t.Fatalf("pending = %d, want 1 (only the subscribed hook)", pending)
	}
}

func TestTriggerAppliesFilters(t *testing.T) {
	gh, s := setup(t)
	srv, _ := receiver(t)

	register(t, gh, srv.URL, []string{"settings.updated"}, []webhook.Filter{
		{Field: "section", Operator: webhook.OpEquals, Value: "colors"},
	})
	register(t, gh, srv.URL, []string{"settings.updated"}, []webhook.Filter{
		{Field: "section", Operator: webhook.OpEquals, Value: "typography"},
	})

	if err := gh.Trigger(ctx(), "settings.updated", map[string]any{"section": "colors"}, nil); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	pending, err := s.CountPending(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if pending != 1 {
		t.Fatalf("pending = %d, want 1 (filter mismatch should drop the other)", pending)
	}
}

func TestTriggerRejectsSchemaInvalidPayload(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"required": ["section"],
		"properties": {"section": {"type": "string"}}
	}`)
	gh, _ := setup(t, gatehouse.WithDefinitions(catalog.Definition{
		Name:   "settings.updated",
		Schema: schema,
	}))

	err := gh.Trigger(ctx(), "settings.updated", map[string]any{"section": 42}, nil)
	if !errors.Is(err, gatehouse.ErrPayloadInvalid) {
		t.Fatalf("err = %v, want ErrPayloadInvalid", err)
	}

	if err := gh.Trigger(ctx(), "settings.updated", map[string]any{"section": "colors"}, nil); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
}

func TestTriggerDeliversEndToEnd(t *testing.T) {
	gh, s := setup(t)
	srv, hits := receiver(t)

	wh := register(t, gh, srv.URL, []string{"backup.created"}, nil)

	if err := gh.Trigger(ctx(), "backup.created", map[string]any{"backup_id": "b-1"}, nil); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	if n := gh.RunDeliveriesOnce(ctx()); n != 1 {
		t.Fatalf("processed = %d, want 1", n)
	}
	if hits.Load() != 1 {
		t.Fatalf("endpoint hits = %d, want 1", hits.Load())
	}

	ds, err := s.ListByWebhook(ctx(), wh.ID, delivery.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 1 || ds[0].State != delivery.StateSucceeded {
		t.Fatalf("deliveries = %+v, want one succeeded", ds)
	}

	// The attempt lands in the reliability ledger and the webhook's
	// rolling counters.
	stats, err := gh.Ledger().Stats(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Attempts != 1 || stats.Succeeded != 1 {
		t.Fatalf("ledger stats = %+v, want 1 attempt 1 succeeded", stats)
	}

	got, err := s.GetWebhook(ctx(), wh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SuccessCount != 1 {
		t.Fatalf("success count = %d, want 1", got.SuccessCount)
	}
}

func TestIssueAndValidateKey(t *testing.T) {
	gh, _ := setup(t)

	k, plaintext, err := gh.Keys().Issue(ctx(), apikey.IssueInput{
		OwnerID:     "owner-1",
		DisplayName: "CI automation",
		Permissions: []string{"read_settings", "write_settings"},
	})
	if err != nil {
		t.Fatal(err)
	}

	grant, err := gh.Keys().Validate(ctx(), plaintext, "https://admin.example.com")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if grant.KeyID != k.ID || grant.OwnerID != "owner-1" {
		t.Fatalf("grant = %+v, want key %s owner owner-1", grant, k.ID)
	}
}

func TestInvalidKeyLandsInLedger(t *testing.T) {
	gh, _ := setup(t)

	_, err := gh.Keys().Validate(ctx(), "mak_definitely_not_issued", "https://evil.example.com")
	if !errors.Is(err, apikey.ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}

	kind := ledger.KindAudit
	entries, err := gh.Ledger().List(ctx(), ledger.ListOpts{Kind: &kind})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Origin != "https://evil.example.com" {
		t.Fatalf("audit entries = %+v, want one with the caller origin", entries)
	}
}

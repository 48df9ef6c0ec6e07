package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m3n3sx/gatehouse/api"
	"github.com/m3n3sx/gatehouse/apikey"
	"github.com/m3n3sx/gatehouse/catalog"
	"github.com/m3n3sx/gatehouse/ledger"
	"github.com/m3n3sx/gatehouse/ratelimit"
	"github.com/m3n3sx/gatehouse/store/memory"
	"github.com/m3n3sx/gatehouse/webhook"
)

const testHashSecret = "api-test-hash-secret"

// testServer wires a handler over a memory store and mints two credentials:
// a plain key and an admin key.
func testServer(t *testing.T) (*httptest.Server, string, string) {
	t.Helper()

	s := memory.New()
	logger := slog.Default()
	cat := catalog.New()
	limiter := ratelimit.New(s, nil, 0)
	ledgerSvc := ledger.NewService(s, ledger.Config{}, nil, logger)
	keySvc := apikey.NewService(s, limiter, ledgerSvc, apikey.Config{
		HashSecret:      testHashSecret,
		MaxKeysPerOwner: 10,
	}, nil, logger)
	// nil prober: the registration probe is exercised in the delivery
	// package tests.
	webhookSvc := webhook.NewService(s, cat, nil, webhook.Config{
		MaxWebhooksPerOwner: 20,
	}, nil, logger)

	_, plain, err := keySvc.Issue(context.Background(), apikey.IssueInput{
		OwnerID:     "owner-1",
		DisplayName: "plain",
		Permissions: []string{"read_settings", "write_settings", "manage_webhooks"},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, admin, err := keySvc.Issue(context.Background(), apikey.IssueInput{
		OwnerID:     "admin-1",
		DisplayName: "admin",
		Permissions: []string{"admin"},
	})
	if err != nil {
		t.Fatal(err)
	}

	h := api.NewHandler(s, cat, keySvc, webhookSvc, ledgerSvc, logger)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, plain, admin
}

func doJSON(t *testing.T, method, url, key string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if key != "" {
		req.Header.Set("X-Api-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestRequestsWithoutKeyAreRejected(t *testing.T) {
	srv, _, _ := testServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/webhooks", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestBearerAndQueryParamAuth(t *testing.T) {
	srv, plain, _ := testServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/webhooks", nil)
	req.Header.Set("Authorization", "Bearer "+plain)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bearer status = %d, want 200", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/webhooks?api_key="+plain, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query param status = %d, want 200", resp.StatusCode)
	}
}

func TestKeyLifecycle(t *testing.T) {
	srv, plain, _ := testServer(t)

	// Issue a second key for the same owner.
	resp := doJSON(t, http.MethodPost, srv.URL+"/keys", plain, map[string]any{
		"display_name": "backup automation",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var created struct {
		Key       apikey.Key `json:"key"`
		Plaintext string     `json:"plaintext"`
	}
	decodeBody(t, resp, &created)
	if created.Plaintext == "" {
		t.Fatal("plaintext missing from creation response")
	}
	if created.Key.OwnerID != "owner-1" {
		t.Fatalf("owner = %q, want owner-1 (defaulted from actor)", created.Key.OwnerID)
	}

	keyURL := srv.URL + "/keys/" + created.Key.ID.String()

	resp = doJSON(t, http.MethodGet, keyURL, plain, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}

	// Rotation invalidates the old plaintext and mints a new one.
	resp = doJSON(t, http.MethodPost, keyURL+"/rotate", plain, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotate status = %d, want 200", resp.StatusCode)
	}
	var rotated struct {
		Plaintext string `json:"plaintext"`
	}
	decodeBody(t, resp, &rotated)

	resp = doJSON(t, http.MethodGet, srv.URL+"/keys", created.Plaintext, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old plaintext status = %d, want 401 after rotation", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/keys", rotated.Plaintext, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("new plaintext status = %d, want 200", resp.StatusCode)
	}

	// Revocation kills the credential.
	resp = doJSON(t, http.MethodDelete, keyURL, plain, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke status = %d, want 204", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/keys", rotated.Plaintext, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked key status = %d, want 401", resp.StatusCode)
	}
}

func TestWebhookLifecycle(t *testing.T) {
	srv, plain, _ := testServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/webhooks", plain, map[string]any{
		"name":   "slack bridge",
		"url":    "https://hooks.example.com/wh",
		"events": []string{"settings.updated"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var created struct {
		Webhook webhook.Webhook `json:"webhook"`
		Secret  string          `json:"secret"`
	}
	decodeBody(t, resp, &created)
	if created.Secret == "" {
		t.Fatal("secret missing from creation response")
	}

	whURL := srv.URL + "/webhooks/" + created.Webhook.ID.String()

	resp = doJSON(t, http.MethodPut, whURL, plain, map[string]any{
		"name":   "renamed bridge",
		"url":    "https://hooks.example.com/wh",
		"events": []string{"settings.updated", "theme.applied"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want 200", resp.StatusCode)
	}
	var updated webhook.Webhook
	decodeBody(t, resp, &updated)
	if updated.Name != "renamed bridge" || len(updated.Events) != 2 {
		t.Fatalf("updated = %+v", updated)
	}

	resp = doJSON(t, http.MethodPatch, whURL+"/disable", plain, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("disable status = %d, want 204", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, whURL+"/deliveries", plain, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deliveries status = %d, want 200", resp.StatusCode)
	}
	var deliveries []json.RawMessage
	decodeBody(t, resp, &deliveries)
	if len(deliveries) != 0 {
		t.Fatalf("deliveries = %d, want 0", len(deliveries))
	}

	resp = doJSON(t, http.MethodDelete, whURL, plain, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, whURL, plain, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestWebhookValidation(t *testing.T) {
	srv, plain, _ := testServer(t)

	// Unknown event names are rejected.
	resp := doJSON(t, http.MethodPost, srv.URL+"/webhooks", plain, map[string]any{
		"name":   "bad",
		"url":    "https://hooks.example.com/wh",
		"events": []string{"no.such.event"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown event status = %d, want 400", resp.StatusCode)
	}
}

func TestOwnershipEnforced(t *testing.T) {
	srv, plain, admin := testServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/webhooks", plain, map[string]any{
		"name":   "mine",
		"url":    "https://hooks.example.com/wh",
		"events": []string{"settings.updated"},
	})
	var created struct {
		Webhook webhook.Webhook `json:"webhook"`
	}
	decodeBody(t, resp, &created)

	// A caller cannot mint credentials for another owner.
	resp = doJSON(t, http.MethodPost, srv.URL+"/keys", plain, map[string]any{
		"owner_id":     "someone-else",
		"display_name": "not mine",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-owner issue status = %d, want 403", resp.StatusCode)
	}

	// Admin bypasses ownership.
	whURL := srv.URL + "/webhooks/" + created.Webhook.ID.String()
	resp = doJSON(t, http.MethodGet, whURL, admin, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin get status = %d, want 200", resp.StatusCode)
	}
}

func TestStatsIsAdminOnly(t *testing.T) {
	srv, plain, admin := testServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/stats", plain, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("plain key status = %d, want 403", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/stats", admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin status = %d, want 200", resp.StatusCode)
	}
	var stats struct {
		PendingDeliveries int64 `json:"pending_deliveries"`
	}
	decodeBody(t, resp, &stats)
	if stats.PendingDeliveries != 0 {
		t.Fatalf("pending = %d, want 0", stats.PendingDeliveries)
	}
}

func TestEventVocabulary(t *testing.T) {
	srv, plain, _ := testServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/events", plain, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var defs []catalog.Definition
	decodeBody(t, resp, &defs)
	if len(defs) != len(catalog.Builtin()) {
		t.Fatalf("definitions = %d, want %d", len(defs), len(catalog.Builtin()))
	}
}

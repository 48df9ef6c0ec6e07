// Package gatehouse provides the trust boundary for the MASE admin host:
// API key issuance and validation on the way in, signed webhook delivery on
// the way out.
//
// Gatehouse is a library, not a service. The host application embeds it,
// terminates HTTP, and mounts the management handler from the api package.
//
// Key features:
//   - Opaque API keys stored as keyed HMAC-SHA256 hashes, compared in
//     constant time, with rotation, revocation, origin allowlists, per-owner
//     quotas, and tumbling per-key rate limits
//   - Webhook registry with a fixed event vocabulary, connectivity probing,
//     payload filter predicates, and per-webhook retry policies
//   - Delivery engine with HMAC-SHA256 signed envelopes, exponential
//     backoff, and a bounded reliability ledger
//   - Composable store pattern with memory, Redis, and MongoDB backends
//   - Injected clock (clockwork) so expiry, rate windows, and retry
//     schedules are testable without sleeping
//
// Quick start:
//
//	gh, err := gatehouse.New(
//	    gatehouse.WithStore(memoryStore),
//	    gatehouse.WithHashSecret(secret),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	gh.Start(ctx)
//	defer gh.Stop(ctx)
//
//	key, plaintext, _ := gh.Keys().Issue(ctx, apikey.IssueInput{
//	    OwnerID:     "user_42",
//	    DisplayName: "CI automation",
//	})
//
//	gh.Trigger(ctx, "settings.updated", map[string]any{
//	    "section": "appearance",
//	}, nil)
package gatehouse

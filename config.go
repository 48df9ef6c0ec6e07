package gatehouse

import "time"

// Config holds the configuration for a Gatehouse instance.
type Config struct {
	// HashSecret keys the HMAC under which plaintext API keys are hashed
	// for storage. Changing it invalidates every issued key. Required.
	HashSecret string

	// MaxKeysPerOwner caps active API keys per owner.
	MaxKeysPerOwner int

	// MaxKeyExpiry is the furthest ahead a key expiry may be set; later
	// requests are clamped.
	MaxKeyExpiry time.Duration

	// MaxWebhooksPerOwner caps registered webhooks per owner.
	MaxWebhooksPerOwner int

	// ProbeTimeout is the HTTP timeout for the registration connectivity
	// probe.
	ProbeTimeout time.Duration

	// Concurrency is the number of delivery worker goroutines.
	Concurrency int

	// PollInterval is how often the delivery engine checks for due
	// deliveries.
	PollInterval time.Duration

	// BatchSize is the maximum number of deliveries claimed per poll cycle.
	BatchSize int

	// RequestTimeout is the HTTP timeout per delivery attempt.
	RequestTimeout time.Duration

	// LedgerMaxEntries bounds the reliability ledger by count.
	LedgerMaxEntries int

	// LedgerMaxAge bounds the reliability ledger by age.
	LedgerMaxAge time.Duration
}

// DefaultConfig returns a Config with sensible defaults. HashSecret has no
// default; the host must supply one.
func DefaultConfig() Config {
	return Config{
		MaxKeysPerOwner:     10,
		MaxKeyExpiry:        365 * 24 * time.Hour,
		MaxWebhooksPerOwner: 20,
		ProbeTimeout:        10 * time.Second,
		Concurrency:         10,
		PollInterval:        1 * time.Second,
		BatchSize:           50,
		RequestTimeout:      30 * time.Second,
		LedgerMaxEntries:    1000,
		LedgerMaxAge:        30 * 24 * time.Hour,
	}
}

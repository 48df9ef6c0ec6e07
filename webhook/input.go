package webhook

// Input is the creation/update payload for webhooks.
type Input struct {
	// OwnerID identifies the account that owns this webhook.
	OwnerID string `json:"owner_id"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// URL is the delivery URL. Must be absolute.
	URL string `json:"url"`

	// Events is the subscribed subset of the catalog vocabulary.
	Events []string `json:"events"`

	// Headers are custom HTTP headers merged into each delivery.
	Headers map[string]string `json:"headers,omitempty"`

	// Filters are payload predicates; all must pass for a match.
	Filters []Filter `json:"filters,omitempty"`

	// RetryPolicy bounds retries. Zero values fall back to the defaults.
	RetryPolicy *RetryPolicy `json:"retry_policy,omitempty"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

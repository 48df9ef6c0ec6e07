package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/m3n3sx/gatehouse/catalog"
	"github.com/m3n3sx/gatehouse/webhook"
)

// DefaultProbeTimeout bounds the connectivity check performed before a
// webhook is registered or its URL changed.
const DefaultProbeTimeout = 10 * time.Second

// Prober checks endpoint reachability by posting a signed synthetic
// test event. The test event is never retried and never recorded.
type Prober struct {
	sender *Sender
}

// NewProber creates a prober with the given HTTP timeout.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{sender: NewSender(timeout)}
}

// Probe posts a test envelope to the URL and reports failure unless
// the endpoint answers with a 2xx status.
func (p *Prober) Probe(ctx context.Context, targetURL, secret string, headers map[string]string) error {
	now := time.Now()
	env := Envelope{
		Event:      catalog.TestEvent,
		Timestamp:  now.UTC().Format(time.RFC3339),
		DeliveryID: uuid.NewString(),
		Data:       map[string]any{"message": "connectivity check"},
	}

	res := p.sender.post(ctx, targetURL, secret, headers, env, now)
	if res.Err != nil {
		return fmt.Errorf("%w: %v", webhook.ErrEndpointUnreachable, res.Err)
	}
	if !res.Success() {
		return fmt.Errorf("%w: endpoint returned status %d", webhook.ErrEndpointUnreachable, res.StatusCode)
	}
	return nil
}

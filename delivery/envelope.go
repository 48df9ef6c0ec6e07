package delivery

import (
	"encoding/json"
	"time"

	"github.com/m3n3sx/gatehouse/event"
	"github.com/m3n3sx/gatehouse/id"
)

// Envelope is the JSON body posted to a webhook endpoint. The
// signature covers the exact serialized bytes, so receivers must
// verify against the raw body before parsing.
type Envelope struct {
	Event      string         `json:"event"`
	Timestamp  string         `json:"timestamp"`
	DeliveryID string         `json:"delivery_id"`
	WebhookID  string         `json:"webhook_id"`
	Data       map[string]any `json:"data"`
	Context    map[string]any `json:"context,omitempty"`
}

// BuildEnvelope assembles the payload for one delivery attempt. The
// timestamp reflects the attempt time; the delivery_id stays stable
// across retries.
func BuildEnvelope(evt *event.Event, webhookID id.ID, deliveryID string, at time.Time) Envelope {
	return Envelope{
		Event:      evt.Name,
		Timestamp:  at.UTC().Format(time.RFC3339),
		DeliveryID: deliveryID,
		WebhookID:  webhookID.String(),
		Data:       evt.Data,
		Context:    evt.Context,
	}
}

// Marshal serializes the envelope. The returned bytes are both the
// request body and the signature input.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

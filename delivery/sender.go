package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/m3n3sx/gatehouse/signature"
	"github.com/m3n3sx/gatehouse/webhook"
)

const maxResponseBody = 1024 // 1KB cap on response body storage

const defaultUserAgent = "MASE-Webhook/1.0"

// Sender performs HTTP webhook delivery.
type Sender struct {
	client    *http.Client
	userAgent string
}

// NewSender creates a sender with the given HTTP timeout.
func NewSender(timeout time.Duration) *Sender {
	return &Sender{
		client:    &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
	}
}

// Send delivers an envelope to a webhook and returns the result. The
// signature covers the exact serialized body bytes.
func (s *Sender) Send(ctx context.Context, wh *webhook.Webhook, env Envelope, at time.Time) Result {
	return s.post(ctx, wh.URL, wh.Secret, wh.Headers, env, at)
}

func (s *Sender) post(ctx context.Context, url, secret string, headers map[string]string, env Envelope, at time.Time) Result {
	body, err := env.Marshal()
	if err != nil {
		return Result{Err: fmt.Errorf("marshal envelope: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("X-Event", env.Event)
	req.Header.Set("X-Delivery-Id", env.DeliveryID)
	req.Header.Set("X-Signature", signature.Sign(body, secret))
	req.Header.Set("X-Timestamp", strconv.FormatInt(at.Unix(), 10))

	// Custom webhook headers. Reserved names are stripped at
	// registration, so these cannot shadow the standard set.
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // G704: URL is a user-configured webhook destination; SSRF is by design.
	latency := time.Since(start)

	if err != nil {
		return Result{Err: err, Latency: latency}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("read response: %w", readErr),
			Latency:    latency,
		}
	}

	return Result{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Latency:    latency,
	}
}

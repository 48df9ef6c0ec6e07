package delivery_test

import (
	"errors"
	"testing"
	"time"

	"github.com/m3n3sx/gatehouse/delivery"
)

func TestRetrierDecide(t *testing.T) {
	retrier := delivery.NewRetrier()

	tests := []struct {
		name     string
		result   delivery.Result
		delivery *delivery.Delivery
		want     delivery.Decision
	}{
		{
			name:     "200 OK succeeds",
			result:   delivery.Result{StatusCode: 200},
			delivery: &delivery.Delivery{AttemptCount: 1, MaxAttempts: 3},
			want:     delivery.Succeeded,
		},
		{
			name:     "204 No Content succeeds",
			result:   delivery.Result{StatusCode: 204},
			delivery: &delivery.Delivery{AttemptCount: 1, MaxAttempts: 3},
			want:     delivery.Succeeded,
		},
		{
			name:     "404 retries while attempts remain",
			result:   delivery.Result{StatusCode: 404},
			delivery: &delivery.Delivery{AttemptCount: 1, MaxAttempts: 3},
			want:     delivery.Retry,
		},
		{
			name:     "429 retries while attempts remain",
			result:   delivery.Result{StatusCode: 429},
			delivery: &delivery.Delivery{AttemptCount: 2, MaxAttempts: 3},
			want:     delivery.Retry,
		},
		{
			name:     "500 retries while attempts remain",
			result:   delivery.Result{StatusCode: 500},
			delivery: &delivery.Delivery{AttemptCount: 1, MaxAttempts: 3},
			want:     delivery.Retry,
		},
		{
			name:     "connection error retries while attempts remain",
			result:   delivery.Result{Err: errors.New("connection refused")},
			delivery: &delivery.Delivery{AttemptCount: 1, MaxAttempts: 3},
			want:     delivery.Retry,
		},
		{
			name:     "500 exhausts at max attempts",
			result:   delivery.Result{StatusCode: 500},
			delivery: &delivery.Delivery{AttemptCount: 3, MaxAttempts: 3},
			want:     delivery.Exhausted,
		},
		{
			name:     "timeout exhausts at max attempts",
			result:   delivery.Result{Err: errors.New("context deadline exceeded")},
			delivery: &delivery.Delivery{AttemptCount: 3, MaxAttempts: 3},
			want:     delivery.Exhausted,
		},
		{
			name:     "2xx with transport error does not succeed",
			result:   delivery.Result{StatusCode: 200, Err: errors.New("read response: unexpected EOF")},
			delivery: &delivery.Delivery{AttemptCount: 1, MaxAttempts: 3},
			want:     delivery.Retry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := retrier.Decide(tt.result, tt.delivery)
			if got != tt.want {
				t.Errorf("Decide() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRetrierBackoffDoubles(t *testing.T) {
	retrier := delivery.NewRetrier()

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
	}

	for _, tt := range tests {
		d := &delivery.Delivery{AttemptCount: tt.attempts, BaseDelaySeconds: 5}
		if got := retrier.Backoff(d); got != tt.want {
			t.Errorf("Backoff after %d attempts = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

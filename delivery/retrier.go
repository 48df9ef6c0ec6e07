package delivery

import "time"

// Decision is the outcome of evaluating a delivery attempt.
type Decision int

const (
	// Succeeded means the endpoint acknowledged the delivery (2xx).
	Succeeded Decision = iota

	// Retry means the delivery should be attempted again later.
	Retry

	// Exhausted means every allowed attempt has been used.
	Exhausted
)

// Retrier decides what to do after a delivery attempt. Any non-2xx
// outcome, including connection errors and timeouts, counts as a
// failed attempt and is retried with exponential backoff until the
// delivery's attempt budget runs out.
type Retrier struct{}

// NewRetrier creates a retrier.
func NewRetrier() *Retrier {
	return &Retrier{}
}

// Decide determines what to do with a delivery after an attempt.
func (r *Retrier) Decide(res Result, d *Delivery) Decision {
	if res.Success() {
		return Succeeded
	}
	if d.AttemptCount < d.MaxAttempts {
		return Retry
	}
	return Exhausted
}

// Backoff returns the delay before the next attempt, given the number
// of attempts already made: base doubles with each failure, so the
// nth failure waits base*2^(n-1).
func (r *Retrier) Backoff(d *Delivery) time.Duration {
	delay := time.Duration(d.BaseDelaySeconds) * time.Second
	for i := 1; i < d.AttemptCount; i++ {
		delay *= 2
	}
	return delay
}

package feed

import (
	"math/rand"
	"time"
)

// ReconnectPolicy decides whether, and after how long, the client dials
// again once the upstream connection is lost. attempt is 1-based and
// resets after every successful connection.
type ReconnectPolicy interface {
	Next(attempt int) (wait time.Duration, retry bool)
}

// NoReconnect stops the client after the first disconnect.
type NoReconnect struct{}

func (NoReconnect) Next(int) (time.Duration, bool) { return 0, false }

// Backoff retries with exponentially growing, jittered delays.
type Backoff struct {
	// Min is the delay before the first retry.
	Min time.Duration
	// Max caps the delay.
	Max time.Duration
	// Factor multiplies the delay for each retry attempt.
	Factor float64
	// Jitter is the fraction of the delay randomized in both directions.
	Jitter float64
	// MaxAttempts stops retrying after this many consecutive failures.
	// Zero means retry forever.
	MaxAttempts int
}

// DefaultBackoff provides conservative reconnect defaults.
func DefaultBackoff() Backoff {
	return Backoff{
		Min:    250 * time.Millisecond,
		Max:    30 * time.Second,
		Factor: 2.0,
		Jitter: 0.2,
	}
}

// Next returns the delay for the given attempt.
func (b Backoff) Next(attempt int) (time.Duration, bool) {
	if b.MaxAttempts > 0 && attempt > b.MaxAttempts {
		return 0, false
	}
	if attempt <= 0 {
		attempt = 1
	}
	min := b.Min
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	max := b.Max
	if max <= 0 {
		max = 30 * time.Second
	}
	if min > max {
		min = max
	}
	factor := b.Factor
	if factor <= 1 {
		factor = 2.0
	}

	wait := min
	for i := 1; i < attempt; i++ {
		next := time.Duration(float64(wait) * factor)
		if next > max {
			wait = max
			break
		}
		wait = next
	}

	if b.Jitter <= 0 {
		return wait, true
	}
	jitter := b.Jitter
	if jitter > 1 {
		jitter = 1
	}
	delta := float64(wait) * jitter
	return wait - time.Duration(delta) + time.Duration(rand.Float64()*2*delta), true
}

package worker

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffPolicy computes the delay before retry attempt n (1-based):
// Base * 2^(n-1), randomized by ±Jitter and capped at Max.
type BackoffPolicy struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

// Delay returns the wait before the given attempt is retried.
func (b BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.Base
	eb.Multiplier = 2
	eb.RandomizationFactor = b.Jitter
	eb.MaxInterval = b.Max
	eb.MaxElapsedTime = 0
	eb.Reset()

	d := eb.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = eb.NextBackOff()
	}
	if d > b.Max {
		d = b.Max
	}
	return d
}

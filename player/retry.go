package player

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 8 * time.Second
)

// RetryPolicy is the one retry ladder every failure path goes through:
// an initial attempt plus MaxRetries retries, delays doubling from
// BaseDelay up to MaxDelay. Keeping a single implementation means the
// retry bound is enforced identically for HLS, direct, timeout and
// stall recovery instead of being re-invented per call site.
type RetryPolicy struct {
	MaxRetries int           // retries after the initial attempt
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // backoff cap

	// OnRetry is called before each retry sleep with the upcoming
	// attempt number (1-based), the sleep duration, and the error that
	// caused it.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy is the ladder from the loader contract:
// 3 retries at 1s, 2s, 4s, capped at 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: defaultMaxRetries,
		BaseDelay:  defaultBaseDelay,
		MaxDelay:   defaultMaxDelay,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = defaultMaxRetries
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	return p
}

// Run executes op under the policy. Errors wrapped with Permanent stop
// the ladder immediately; context cancellation aborts between attempts.
func (p RetryPolicy) Run(ctx context.Context, op func() error) error {
	p = p.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = 0

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxRetries)+1),
		backoff.WithNotify(func(err error, delay time.Duration) {
			attempt++
			if p.OnRetry != nil {
				p.OnRetry(attempt, delay, err)
			}
		}),
	)
	return err
}

// Permanent marks an error so the ladder gives up on it at once.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

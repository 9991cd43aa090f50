// Package retry centralizes the retry/backoff policy used for flaky external
// calls (embedding providers first of all), instead of scattering inline
// sleep loops through callers.
package retry

import (
	"context"
	"time"
)

type Policy struct {
	MaxAttempts int
	// Backoff returns the pause before retrying after the given 1-based
	// failed attempt.
	Backoff func(attempt int) time.Duration
	// Retryable classifies errors; a non-retryable error propagates
	// immediately.
	Retryable func(error) bool
	// Sleep is swappable in tests. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// LinearBackoff returns attempt * unit.
func LinearBackoff(unit time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * unit
	}
}

// Do runs op up to MaxAttempts times. Retryable failures back off between
// attempts; the last error is returned once attempts are exhausted or the
// context is done.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.Backoff != nil {
			sleep(p.Backoff(attempt))
		}
	}
	return err
}

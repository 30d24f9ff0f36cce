// Package backoff provides the single retry policy shared by every
// component that talks to flaky infrastructure. Producer publishes,
// consumer connections and subscription attempts all consume the same
// Policy instead of carrying their own retry loops.
package backoff

import (
	"context"
	"time"
)

// Policy describes capped exponential backoff. A zero Policy is not
// usable; construct one via config or the Default helper.
type Policy struct {
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	MaxAttempts int

	// SpecialCaseMultiplier stretches the delay for error classes that
	// are known to need longer to clear, such as a broker leader
	// election in progress.
	SpecialCaseMultiplier float64
}

// Default returns the policy used when nothing is configured.
func Default() Policy {
	return Policy{
		BaseDelay:             200 * time.Millisecond,
		Multiplier:            2.0,
		MaxDelay:              10 * time.Second,
		MaxAttempts:           5,
		SpecialCaseMultiplier: 3.0,
	}
}

// Delay returns the wait before retry number attempt (0-based), capped
// at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
		if time.Duration(d) >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// SpecialDelay is Delay stretched by SpecialCaseMultiplier, still capped
// at MaxDelay.
func (p Policy) SpecialDelay(attempt int) time.Duration {
	m := p.SpecialCaseMultiplier
	if m <= 0 {
		m = 1
	}
	d := time.Duration(float64(p.Delay(attempt)) * m)
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// SpecialCase classifies an error as belonging to the slow-retry class.
type SpecialCase func(error) bool

// Retry runs op until it succeeds, MaxAttempts is exhausted, or ctx is
// done. special may be nil. The last error is returned on exhaustion.
func (p Policy) Retry(ctx context.Context, op func(ctx context.Context) error, special SpecialCase) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.Delay(attempt)
		if special != nil && special(lastErr) {
			delay = p.SpecialDelay(attempt)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

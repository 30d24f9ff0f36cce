package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testPolicy() Policy {
	return Policy{
		BaseDelay:             1 * time.Millisecond,
		Multiplier:            2.0,
		MaxDelay:              8 * time.Millisecond,
		MaxAttempts:           4,
		SpecialCaseMultiplier: 4.0,
	}
}

func TestDelay_ExponentialGrowthWithCap(t *testing.T) {
	p := testPolicy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Millisecond},
		{1, 2 * time.Millisecond},
		{2, 4 * time.Millisecond},
		{3, 8 * time.Millisecond},
		{4, 8 * time.Millisecond}, // capped
		{10, 8 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestSpecialDelay_StretchedButCapped(t *testing.T) {
	p := testPolicy()

	if got := p.SpecialDelay(0); got != 4*time.Millisecond {
		t.Errorf("SpecialDelay(0) = %v, want 4ms", got)
	}
	if got := p.SpecialDelay(2); got != 8*time.Millisecond {
		t.Errorf("SpecialDelay(2) = %v, want cap 8ms", got)
	}
}

func TestSpecialDelay_ZeroMultiplierFallsBackToDelay(t *testing.T) {
	p := testPolicy()
	p.SpecialCaseMultiplier = 0

	if got, want := p.SpecialDelay(1), p.Delay(1); got != want {
		t.Errorf("SpecialDelay(1) = %v, want %v", got, want)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	p := testPolicy()

	calls := 0
	err := p.Retry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, nil)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRetry_ExhaustionReturnsLastError(t *testing.T) {
	p := testPolicy()

	lastErr := errors.New("still broken")
	calls := 0
	err := p.Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return lastErr
	}, nil)

	if !errors.Is(err, lastErr) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != p.MaxAttempts {
		t.Errorf("expected %d attempts, got %d", p.MaxAttempts, calls)
	}
}

func TestRetry_ContextCancellationStopsRetrying(t *testing.T) {
	p := testPolicy()
	p.BaseDelay = 50 * time.Millisecond
	p.MaxDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Retry(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt before cancellation, got %d", calls)
	}
}

func TestRetry_SpecialCaseUsesStretchedDelay(t *testing.T) {
	p := Policy{
		BaseDelay:             5 * time.Millisecond,
		Multiplier:            1.0,
		MaxDelay:              time.Second,
		MaxAttempts:           2,
		SpecialCaseMultiplier: 10.0,
	}

	special := errors.New("leader election in progress")
	start := time.Now()
	_ = p.Retry(context.Background(), func(ctx context.Context) error {
		return special
	}, func(err error) bool { return errors.Is(err, special) })
	elapsed := time.Since(start)

	// One inter-attempt wait of 5ms * 10.
	if elapsed < 50*time.Millisecond {
		t.Errorf("special-case delay not applied, elapsed %v", elapsed)
	}
}

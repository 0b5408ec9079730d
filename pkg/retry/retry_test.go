package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func fastConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryIfTakesPrecedence(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryableErrors = []error{errTransient}
	cfg.RetryIf = func(error) bool { return false }

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		return errTransient
	})
	if err == nil || attempts != 1 {
		t.Errorf("expected single attempt when RetryIf rejects, got %d (%v)", attempts, err)
	}
}

func TestRetryableErrorsFilter(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryableErrors = []error{errTransient}

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		return errors.New("permanent")
	})
	if err == nil || attempts != 1 {
		t.Errorf("expected no retry on non-listed error, got %d attempts (%v)", attempts, err)
	}
}

func TestOnRetryHook(t *testing.T) {
	cfg := fastConfig()
	var hookAttempts []int
	cfg.OnRetry = func(attempt int, _ error) {
		hookAttempts = append(hookAttempts, attempt)
	}

	Do(context.Background(), cfg, func() error { return errTransient })

	if len(hookAttempts) != 2 || hookAttempts[0] != 1 || hookAttempts[1] != 2 {
		t.Errorf("expected hook on attempts 1 and 2, got %v", hookAttempts)
	}
}

func TestRandomDelayBounds(t *testing.T) {
	cfg := fastConfig()
	cfg.RandomDelayMin = 2 * time.Millisecond
	cfg.RandomDelayMax = 4 * time.Millisecond

	for i := 0; i < 50; i++ {
		d := nextDelay(time.Millisecond, cfg)
		if d < cfg.RandomDelayMin || d >= cfg.RandomDelayMax {
			t.Fatalf("delay %v outside [%v, %v)", d, cfg.RandomDelayMin, cfg.RandomDelayMax)
		}
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	got, err := DoWithResult(context.Background(), fastConfig(), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errTransient
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Errorf("expected ok, got %q (%v)", got, err)
	}
}

func TestDoCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(), func() error { return errTransient })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context error, got %v", err)
	}
}

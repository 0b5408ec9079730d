package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errDownstream = errors.New("downstream failure")

func TestOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{FailureThreshold: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), func() error { return errDownstream })
	}

	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	err := cb.Execute(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          10 * time.Millisecond,
	})

	cb.Execute(context.Background(), func() error { return errDownstream })
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	time.Sleep(15 * time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open after timeout, got %v", cb.State())
	}

	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("probe request failed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after successful probe, got %v", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{
		FailureThreshold: 1,
		Timeout:          10 * time.Millisecond,
	})

	cb.Execute(context.Background(), func() error { return errDownstream })
	time.Sleep(15 * time.Millisecond)

	cb.Execute(context.Background(), func() error { return errDownstream })
	if cb.State() != StateOpen {
		t.Errorf("expected reopen after half-open failure, got %v", cb.State())
	}
}

func TestExecuteWithResult(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{FailureThreshold: 2})

	got, err := ExecuteWithResult(context.Background(), cb, func() (int, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Errorf("expected 42, got %d (%v)", got, err)
	}

	_, err = ExecuteWithResult(context.Background(), cb, func() (int, error) {
		return 0, errDownstream
	})
	if !errors.Is(err, errDownstream) {
		t.Errorf("expected downstream error, got %v", err)
	}
}

func TestStateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("test", Config{
		FailureThreshold: 1,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	cb.Execute(context.Background(), func() error { return errDownstream })

	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Errorf("unexpected transitions: %v", transitions)
	}
}

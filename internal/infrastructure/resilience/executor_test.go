package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecuteSingleAttemptByDefault(t *testing.T) {
	exec := NewExecutor(Config{BreakerEnabled: false})

	calls := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("boom")
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})

	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls)
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	exec := NewExecutor(Config{BreakerEnabled: false})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := exec.Execute(ctx, "op", func(context.Context) error {
		t.Fatalf("callback must not run with cancelled context")
		return nil
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBreakerOpensAfterFailureRatio(t *testing.T) {
	exec := NewExecutor(Config{
		MaxAttempts:             1,
		BreakerEnabled:          true,
		BreakerMinRequests:      3,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})

	fail := func(context.Context) error { return errors.New("down") }
	classify := func(error) ErrorClassification {
		return ErrorClassification{RecordFailure: true}
	}

	for i := 0; i < 3; i++ {
		_ = exec.Execute(context.Background(), "op", fail, classify)
	}

	err := exec.Execute(context.Background(), "op", fail, classify)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}
}

func TestBreakerIgnoresNonRecordedFailures(t *testing.T) {
	exec := NewExecutor(Config{
		MaxAttempts:             1,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})

	fail := func(context.Context) error { return errors.New("client error") }
	classify := func(error) ErrorClassification {
		return ErrorClassification{RecordFailure: false}
	}

	for i := 0; i < 5; i++ {
		err := exec.Execute(context.Background(), "op", fail, classify)
		if IsCircuitOpen(err) {
			t.Fatalf("circuit must stay closed for non-recorded failures")
		}
	}
}

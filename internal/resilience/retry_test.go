package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/edgescribe/edgescribe/internal/errors"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		JitterFactor: 0.1,
		IsRetryable:  apperrors.IsRetryable,
	}
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Errorf("Retry = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryEventualSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		if calls < 3 {
			return apperrors.New(apperrors.TranscribeFailed, "transient")
		}
		return nil
	})
	if err != nil {
		t.Errorf("Retry = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryNonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(5), func() error {
		calls++
		return apperrors.New(apperrors.ParseFailed, "deterministic")
	})
	if !apperrors.IsCode(err, apperrors.ParseFailed) {
		t.Errorf("Retry = %v, want ParseFailed", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on deterministic failure)", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(2), func() error {
		calls++
		return apperrors.New(apperrors.SummarizeFailed, "still broken")
	})
	if err == nil {
		t.Error("Retry should return last error after exhausting attempts")
	}
	if calls != 3 { // initial + 2 retries
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryRespectsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetryConfig(3), func() error {
		return apperrors.New(apperrors.TranscribeFailed, "x")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry = %v, want context.Canceled", err)
	}
}

func TestRetryUntypedErrorNotRetried(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return errors.New("plain")
	})
	if err == nil {
		t.Error("Retry should return the error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBackoffDelayBounded(t *testing.T) {
	cfg := RetryConfig{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		JitterFactor: 0.2,
	}
	for attempt := 0; attempt < 10; attempt++ {
		d := backoffDelay(cfg, attempt)
		// Jitter is ±10%, so the hard ceiling is MaxDelay * 1.1.
		if d > time.Second+110*time.Millisecond {
			t.Errorf("attempt %d delay %v exceeds bound", attempt, d)
		}
		if d <= 0 {
			t.Errorf("attempt %d delay %v should be positive", attempt, d)
		}
	}
}

func TestSegmentRetryConfig(t *testing.T) {
	cfg := SegmentRetryConfig()
	if cfg.MaxRetries != SegmentMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.MaxRetries, SegmentMaxRetries)
	}
	if cfg.IsRetryable == nil {
		t.Error("IsRetryable should be set")
	}
}

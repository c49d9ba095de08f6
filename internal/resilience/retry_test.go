package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/podforge-ai/podforge/internal/resilience"
)

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		Attempts:       attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	err := resilience.Retry(context.Background(), fastRetry(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &resilience.ExternalServiceError{Service: "llm", Err: errors.New("timeout")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("got %d calls, want 3", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	transient := &resilience.ExternalServiceError{Service: "stt", Err: errors.New("503")}
	calls := 0
	err := resilience.Retry(context.Background(), fastRetry(3), func(ctx context.Context) error {
		calls++
		return transient
	})
	if !errors.Is(err, transient) {
		t.Fatalf("got %v, want the last transient error", err)
	}
	if calls != 3 {
		t.Errorf("got %d calls, want 3", calls)
	}
}

func TestRetry_DeterministicErrorNotRetried(t *testing.T) {
	t.Parallel()

	deterministic := errors.New("mapping validation failed")
	calls := 0
	err := resilience.Retry(context.Background(), fastRetry(3), func(ctx context.Context) error {
		calls++
		return deterministic
	})
	if !errors.Is(err, deterministic) {
		t.Fatalf("got %v, want the deterministic error", err)
	}
	if calls != 1 {
		t.Errorf("got %d calls, want 1 (no retry)", calls)
	}
}

func TestRetry_ContextCancelStopsBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cfg := resilience.RetryConfig{Attempts: 3, InitialBackoff: time.Minute}

	errc := make(chan error, 1)
	go func() {
		errc <- resilience.Retry(ctx, cfg, func(ctx context.Context) error {
			return &resilience.ExternalServiceError{Service: "tts", Err: errors.New("reset")}
		})
	}()
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("got %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Retry did not return after cancellation")
	}
}

func TestRetryResult_ReturnsValue(t *testing.T) {
	t.Parallel()

	got, err := resilience.RetryResult(context.Background(), fastRetry(3), func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("got (%q, %v), want (ok, nil)", got, err)
	}
}

func TestIsExternal(t *testing.T) {
	t.Parallel()

	ese := &resilience.ExternalServiceError{Service: "llm", Err: errors.New("quota")}
	if !resilience.IsExternal(ese) {
		t.Error("IsExternal(ExternalServiceError)=false")
	}
	if !resilience.IsExternal(errors.Join(errors.New("outer"), ese)) {
		t.Error("IsExternal(wrapped)=false")
	}
	if resilience.IsExternal(errors.New("plain")) {
		t.Error("IsExternal(plain)=true")
	}
}

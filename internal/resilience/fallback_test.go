package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/podforge-ai/podforge/internal/resilience"
	llm "github.com/podforge-ai/podforge/pkg/provider/llm"
	"github.com/podforge-ai/podforge/pkg/provider/llm/mock"
)

func groupConfig() resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.BreakerConfig{
			FailureThreshold: 2,
			Cooldown:         time.Hour,
		},
	}
}

func TestFallbackGroup_PrimaryFirst(t *testing.T) {
	t.Parallel()

	fg := resilience.NewFallbackGroup("primary", "primary", groupConfig())
	fg.AddFallback("secondary", "secondary")

	var used string
	err := fg.Execute(func(v string) error {
		used = v
		return nil
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if used != "primary" {
		t.Errorf("used=%q, want primary", used)
	}
}

func TestFallbackGroup_FailsOverInOrder(t *testing.T) {
	t.Parallel()

	fg := resilience.NewFallbackGroup("a", "a", groupConfig())
	fg.AddFallback("b", "b")
	fg.AddFallback("c", "c")

	var tried []string
	got, err := resilience.ExecuteWithResult(fg, func(v string) (string, error) {
		tried = append(tried, v)
		if v != "c" {
			return "", errors.New("unavailable")
		}
		return v, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult returned error: %v", err)
	}
	if got != "c" {
		t.Errorf("got %q, want c", got)
	}
	if len(tried) != 3 {
		t.Errorf("tried=%v, want all three in order", tried)
	}
}

func TestFallbackGroup_AllFailed(t *testing.T) {
	t.Parallel()

	fg := resilience.NewFallbackGroup("a", "a", groupConfig())
	fg.AddFallback("b", "b")

	err := fg.Execute(func(v string) error { return errors.New("down") })
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("got %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_OpenBreakerSkipsEntry(t *testing.T) {
	t.Parallel()

	fg := resilience.NewFallbackGroup("flaky", "flaky", groupConfig())
	fg.AddFallback("stable", "stable")

	// Trip the primary's breaker (threshold 2).
	for range 2 {
		_ = fg.Execute(func(v string) error {
			if v == "flaky" {
				return errors.New("down")
			}
			return nil
		})
	}

	var tried []string
	err := fg.Execute(func(v string) error {
		tried = append(tried, v)
		return nil
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(tried) != 1 || tried[0] != "stable" {
		t.Errorf("tried=%v, want only the fallback (primary breaker open)", tried)
	}
}

func TestLLMFallback_FailsOverToSecondary(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{CompleteErr: errors.New("quota exceeded")}
	secondary := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}

	f := resilience.NewLLMFallback(primary, "primary", groupConfig())
	f.AddFallback("secondary", secondary)

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content=%q, want ok", resp.Content)
	}
	if len(primary.CompleteCalls) != 1 || len(secondary.CompleteCalls) != 1 {
		t.Errorf("calls primary=%d secondary=%d, want 1 and 1",
			len(primary.CompleteCalls), len(secondary.CompleteCalls))
	}
}

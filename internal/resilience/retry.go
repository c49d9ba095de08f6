// Package resilience provides the failure-handling primitives wrapped around
// every external service call in the pipeline: bounded-backoff retries,
// a three-state circuit breaker, and provider failover groups.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ExternalServiceError marks a failure originating in a hosted service
// (network, timeout, quota) rather than in this process. Errors of this type
// are transient by definition and eligible for retry; everything else is
// treated as deterministic and surfaced immediately.
type ExternalServiceError struct {
	// Service names the failing backend, e.g. "llm", "stt", "tts".
	Service string

	// Err is the underlying transport or API error.
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service %s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// RetryConfig tunes [Retry]. Zero-value fields are replaced with defaults.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first. Default: 3.
	Attempts int

	// InitialBackoff is the delay before the second attempt; each subsequent
	// delay doubles. Default: 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the per-attempt delay. Default: 8s.
	MaxBackoff time.Duration

	// RetryIf decides whether an error is worth another attempt. When nil,
	// only [ExternalServiceError] values are retried.
	RetryIf func(error) bool
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 8 * time.Second
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = IsExternal
	}
	return cfg
}

// IsExternal reports whether err is (or wraps) an [ExternalServiceError].
func IsExternal(err error) bool {
	var ese *ExternalServiceError
	return errors.As(err, &ese)
}

// Retry runs fn up to cfg.Attempts times with exponential backoff between
// attempts. Each retry re-issues the full call; there is no partial-result
// patching. Deterministic errors (per cfg.RetryIf) and context cancellation
// stop the loop immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	backoff := cfg.InitialBackoff
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= cfg.Attempts || !cfg.RetryIf(err) || ctx.Err() != nil {
			return err
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, cfg.MaxBackoff)
	}
}

// RetryResult is the value-returning variant of [Retry]. It exists as a
// package-level function because Go does not support method-level type
// parameters.
func RetryResult[R any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (R, error)) (R, error) {
	var result R
	err := Retry(ctx, cfg, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}

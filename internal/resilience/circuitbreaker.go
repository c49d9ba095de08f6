package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// is open and the cooldown has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the operating mode of a [CircuitBreaker].
type BreakerState int

const (
	// BreakerClosed forwards all calls.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects calls with [ErrCircuitOpen] until the cooldown
	// elapses.
	BreakerOpen

	// BreakerProbing admits a small number of trial calls after the
	// cooldown; success closes the breaker, failure re-opens it.
	BreakerProbing
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [CircuitBreaker]. Zero-value fields
// are replaced with defaults.
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// FailureThreshold is the number of consecutive failures that trips the
	// breaker. Default: 5.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before probing. Default: 30s.
	Cooldown time.Duration

	// ProbeBudget is how many trial calls the probing state admits before the
	// breaker decides. Default: 3.
	ProbeBudget int
}

// CircuitBreaker protects a provider from being hammered while it is
// failing: after FailureThreshold consecutive failures it rejects calls for
// Cooldown, then lets a few probes through to test recovery.
type CircuitBreaker struct {
	cfg BreakerConfig

	mu        sync.Mutex
	state     BreakerState
	failures  int
	openedAt  time.Time
	probes    int
	probeOKs  int
}

// NewCircuitBreaker creates a closed [CircuitBreaker].
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeBudget <= 0 {
		cfg.ProbeBudget = 3
	}
	return &CircuitBreaker{cfg: cfg, state: BreakerClosed}
}

// Execute runs fn if the breaker admits the call, recording the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// admit decides whether a call may proceed, handling the open→probing
// transition.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerOpen:
		if time.Since(cb.openedAt) < cb.cfg.Cooldown {
			return ErrCircuitOpen
		}
		cb.state = BreakerProbing
		cb.probes = 0
		cb.probeOKs = 0
		slog.Info("circuit breaker probing", "name", cb.cfg.Name)
		cb.probes++
	case BreakerProbing:
		if cb.probes >= cb.cfg.ProbeBudget {
			return ErrCircuitOpen
		}
		cb.probes++
	}
	return nil
}

// record updates the breaker state from a call outcome.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		if cb.state == BreakerProbing {
			// A failed probe re-opens immediately.
			cb.state = BreakerOpen
			cb.openedAt = time.Now()
			cb.failures = cb.cfg.FailureThreshold
			slog.Warn("circuit breaker re-opened after failed probe", "name", cb.cfg.Name)
			return
		}
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.state = BreakerOpen
			cb.openedAt = time.Now()
			slog.Warn("circuit breaker opened",
				"name", cb.cfg.Name, "consecutive_failures", cb.failures)
		}
		return
	}

	if cb.state == BreakerProbing {
		cb.probeOKs++
		if cb.probeOKs >= cb.cfg.ProbeBudget {
			cb.state = BreakerClosed
			cb.failures = 0
			slog.Info("circuit breaker closed after successful probes", "name", cb.cfg.Name)
		}
		return
	}
	cb.failures = 0
}

// State returns the breaker's current state. An open breaker whose cooldown
// has elapsed reports [BreakerProbing]; the actual transition happens on the
// next Execute.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == BreakerOpen && time.Since(cb.openedAt) >= cb.cfg.Cooldown {
		return BreakerProbing
	}
	return cb.state
}

// Reset forces the breaker back to closed, clearing all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = BreakerClosed
	cb.failures = 0
	cb.probes = 0
	cb.probeOKs = 0
}

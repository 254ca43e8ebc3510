// Package circuitbreaker guards calls to flaky upstreams (the LLM API, the
// spreadsheet CSV export) so that a dead dependency fails fast instead of
// stalling every chat turn.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/clock"
)

// State is exported as a gauge value, so the numbering is fixed.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config holds circuit breaker configuration.
type Config struct {
	// FailureThreshold consecutive failures open a closed circuit.
	FailureThreshold int
	// SuccessThreshold consecutive probe successes close a half-open circuit.
	SuccessThreshold int
	// OpenTimeout is how long the circuit rejects calls before probing.
	OpenTimeout time.Duration
	// HalfOpenMaxRequests bounds the probes in flight while half-open.
	HalfOpenMaxRequests int
	// OnStateChange runs after every transition, outside the lock.
	OnStateChange func(name string, from, to State)
	Clock         clock.Clock
}

// DefaultConfig returns the settings used for the catalog source.
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 2,
	}
}

// Stats is a point-in-time view of a breaker.
type Stats struct {
	Name                string    `json:"name"`
	State               string    `json:"state"`
	Requests            int64     `json:"requests"`
	Failures            int64     `json:"failures"`
	Rejected            int64     `json:"rejected"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Since               time.Time `json:"since"`
	LastError           string    `json:"last_error,omitempty"`
}

// CircuitBreaker trips after repeated upstream failures. Each state change
// starts a new generation; results of calls admitted in an older generation
// are counted in the totals but do not move the state.
type CircuitBreaker struct {
	name   string
	cfg    Config
	clock  clock.Clock
	logger *zap.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	changedAt  time.Time
	probes     int
	failStreak int
	okStreak   int
	requests   int64
	failures   int64
	rejected   int64
	lastErr    error
}

// New creates a breaker. A nil config takes DefaultConfig.
func New(name string, cfg *Config, logger *zap.Logger) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if c.FailureThreshold < 1 {
		c.FailureThreshold = 1
	}
	if c.SuccessThreshold < 1 {
		c.SuccessThreshold = 1
	}
	if c.HalfOpenMaxRequests < 1 {
		c.HalfOpenMaxRequests = 1
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		name:      name,
		cfg:       c,
		clock:     c.Clock,
		logger:    logger.With(zap.String("breaker", name)),
		changedAt: c.Clock.Now(),
	}
}

// Name returns the breaker name used in logs and metrics.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs fn unless the circuit rejects the call. Caller cancellation
// is not charged to the upstream.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	gen, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	cb.settle(gen, err)
	return err
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	var notify func()
	if cb.state == StateOpen && cb.clock.Since(cb.changedAt) >= cb.cfg.OpenTimeout {
		notify = cb.moveTo(StateHalfOpen)
	}

	var err error
	switch cb.state {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if cb.probes >= cb.cfg.HalfOpenMaxRequests {
			err = ErrTooManyRequests
		} else {
			cb.probes++
		}
	}
	if err != nil {
		cb.rejected++
	} else {
		cb.requests++
	}
	gen := cb.generation
	cb.mu.Unlock()

	if notify != nil {
		notify()
	}
	return gen, err
}

func (cb *CircuitBreaker) settle(gen uint64, err error) {
	failed := err != nil && !errors.Is(err, context.Canceled)

	cb.mu.Lock()
	if failed {
		cb.failures++
		cb.lastErr = err
	}
	if gen != cb.generation {
		cb.mu.Unlock()
		return
	}
	if cb.state == StateHalfOpen {
		cb.probes--
	}

	var notify func()
	switch {
	case failed:
		cb.failStreak++
		cb.okStreak = 0
		if cb.state == StateHalfOpen || cb.failStreak >= cb.cfg.FailureThreshold {
			cb.logger.Warn("circuit breaker opened",
				zap.Int("consecutive_failures", cb.failStreak),
				zap.Error(err),
			)
			notify = cb.moveTo(StateOpen)
		}
	case err == nil:
		cb.okStreak++
		cb.failStreak = 0
		if cb.state == StateHalfOpen && cb.okStreak >= cb.cfg.SuccessThreshold {
			cb.logger.Info("circuit breaker closed")
			notify = cb.moveTo(StateClosed)
		}
	}
	cb.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// moveTo must be called with mu held. It returns the hook call to run after unlocking.
func (cb *CircuitBreaker) moveTo(to State) func() {
	from := cb.state
	cb.state = to
	cb.generation++
	cb.changedAt = cb.clock.Now()
	cb.probes = 0
	cb.okStreak = 0
	cb.failStreak = 0

	if to == StateHalfOpen {
		cb.logger.Info("circuit breaker probing upstream")
	}
	hook := cb.cfg.OnStateChange
	if hook == nil || from == to {
		return nil
	}
	return func() { hook(cb.name, from, to) }
}

// State returns the current state. An open circuit whose timeout elapsed
// still reports open until the next call probes it.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// IsOpen reports whether calls are currently rejected outright.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// Stats returns a snapshot of the counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := Stats{
		Name:                cb.name,
		State:               cb.state.String(),
		Requests:            cb.requests,
		Failures:            cb.failures,
		Rejected:            cb.rejected,
		ConsecutiveFailures: cb.failStreak,
		Since:               cb.changedAt,
	}
	if cb.lastErr != nil {
		s.LastError = cb.lastErr.Error()
	}
	return s
}

// Reset closes the circuit and clears the last error.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	notify := cb.moveTo(StateClosed)
	cb.lastErr = nil
	cb.mu.Unlock()

	if notify != nil {
		notify()
	}
	cb.logger.Info("circuit breaker reset", zap.String("from_state", from.String()))
}

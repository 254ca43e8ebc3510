// Package shutdown runs the server's teardown in ordered phases: stop taking
// traffic, drain HTTP, stop background workers, then close Redis and Postgres.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Phase orders teardown. Hooks in the same phase run concurrently.
type Phase int

const (
	// PhasePreDrain runs first, while the listener still accepts requests.
	PhasePreDrain Phase = iota
	// PhaseDrain waits for in-flight HTTP requests.
	PhaseDrain
	// PhaseShutdown stops background workers (session sweeps, rate limiter cleanup).
	PhaseShutdown
	// PhaseCleanup closes connections (Redis, Postgres pool).
	PhaseCleanup
)

var phases = []Phase{PhasePreDrain, PhaseDrain, PhaseShutdown, PhaseCleanup}

var phaseNames = map[Phase]string{
	PhasePreDrain: "pre-drain",
	PhaseDrain:    "drain",
	PhaseShutdown: "shutdown",
	PhaseCleanup:  "cleanup",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// Config holds configuration for the shutdown coordinator.
type Config struct {
	// Timeout bounds the whole sequence, not each phase.
	Timeout time.Duration
}

// DefaultConfig returns a 30s budget.
func DefaultConfig() *Config {
	return &Config{Timeout: 30 * time.Second}
}

type hook struct {
	phase Phase
	name  string
	fn    func(ctx context.Context) error
}

// Coordinator runs the registered hooks once, phase by phase.
type Coordinator struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	hooks []hook

	once     sync.Once
	draining chan struct{}
	done     chan struct{}
	err      error
}

// NewCoordinator creates a Coordinator. A nil config takes DefaultConfig.
func NewCoordinator(cfg *Config, logger *zap.Logger) *Coordinator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		timeout:  cfg.Timeout,
		logger:   logger.Named("shutdown"),
		draining: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// RegisterFunc adds fn to phase under name.
func (c *Coordinator) RegisterFunc(phase Phase, name string, fn func(ctx context.Context) error) {
	c.mu.Lock()
	c.hooks = append(c.hooks, hook{phase: phase, name: name, fn: fn})
	c.mu.Unlock()
}

// Ready reports false once shutdown has begun.
func (c *Coordinator) Ready() bool {
	select {
	case <-c.draining:
		return false
	default:
		return true
	}
}

// Shutdown starts the sequence on first call and waits for it or for ctx.
// The sequence runs with its own timeout regardless of ctx. The error joins
// every hook failure, each prefixed with the hook name.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		close(c.draining)
		go c.run()
	})

	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) run() {
	defer close(c.done)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	c.mu.Lock()
	byPhase := make(map[Phase][]hook)
	for _, h := range c.hooks {
		byPhase[h.phase] = append(byPhase[h.phase], h)
	}
	c.mu.Unlock()

	start := time.Now()
	c.logger.Info("starting graceful shutdown", zap.Duration("timeout", c.timeout))

	var errs []error
	for _, p := range phases {
		if len(byPhase[p]) == 0 {
			continue
		}
		errs = append(errs, c.runPhase(ctx, p, byPhase[p])...)
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("phase %s: %w", p, ctx.Err()))
			c.logger.Error("shutdown timeout exceeded", zap.Stringer("phase", p))
			break
		}
	}

	c.err = errors.Join(errs...)
	if c.err != nil {
		c.logger.Error("shutdown finished with errors",
			zap.Int("error_count", len(errs)),
			zap.Duration("duration", time.Since(start)),
		)
		return
	}
	c.logger.Info("graceful shutdown complete", zap.Duration("duration", time.Since(start)))
}

func (c *Coordinator) runPhase(ctx context.Context, p Phase, hooks []hook) []error {
	c.logger.Info("running shutdown phase", zap.Stringer("phase", p), zap.Int("hooks", len(hooks)))

	results := make([]error, len(hooks))
	var wg sync.WaitGroup
	for i, h := range hooks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.fn(ctx); err != nil {
				c.logger.Error("shutdown hook failed", zap.String("hook", h.name), zap.Error(err))
				results[i] = fmt.Errorf("%s: %w", h.name, err)
			}
		}()
	}
	wg.Wait()

	var errs []error
	for _, err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

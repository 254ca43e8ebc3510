// Package retry runs outbound calls with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/jkindrix/bluehome/internal/errors"
)

// ErrExhausted is returned once every attempt has failed.
var ErrExhausted = errors.New("retries exhausted")

// Config configures exponential backoff behavior.
type Config struct {
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps every wait, including Retry-After hints.
	MaxDelay time.Duration

	// Multiplier grows the delay after each retry.
	Multiplier float64

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// Jitter is the fraction of randomness applied to each delay, 0.0 to 1.0.
	Jitter float64
}

// DefaultConfig returns defaults sized for calls made while a customer waits.
func DefaultConfig() Config {
	return Config{
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		MaxRetries:   2,
		Jitter:       0.2,
	}
}

// StatusError carries the HTTP status of a failed call.
type StatusError struct {
	Err        error
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// FromResponse wraps err with the status and Retry-After hint of resp.
func FromResponse(resp *http.Response, err error) error {
	se := &StatusError{Err: err, StatusCode: resp.StatusCode}
	if secs, perr := strconv.Atoi(resp.Header.Get("Retry-After")); perr == nil && secs > 0 {
		se.RetryAfter = time.Duration(secs) * time.Second
	}
	return se
}

// Retryable reports whether err is worth another attempt. Transport errors are.
// HTTP errors are retried only for 408, 429 and 5xx, app errors only when transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusRequestTimeout, se.StatusCode == http.StatusTooManyRequests:
			return true
		case se.StatusCode >= 500:
			return true
		default:
			return false
		}
	}
	var ae *apperrors.Error
	if errors.As(err, &ae) {
		return apperrors.IsRetriable(err)
	}
	return true
}

// Stats tracks retry statistics.
type Stats struct {
	Attempts  int64 `json:"attempts"`
	Retries   int64 `json:"retries"`
	Recovered int64 `json:"recovered"`
	Exhausted int64 `json:"exhausted"`
}

// Backoff retries operations with exponential delays.
type Backoff struct {
	cfg    Config
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	stats Stats
}

// New creates a Backoff. Zero fields in cfg take their DefaultConfig values,
// except MaxRetries.
func New(cfg Config, logger *zap.Logger) *Backoff {
	def := DefaultConfig()
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backoff{cfg: cfg, logger: logger, sleep: sleepCtx}
}

// Execute runs op until it succeeds, fails with a non-retryable error,
// or runs out of retries.
func (b *Backoff) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		b.count(func(s *Stats) { s.Attempts++ })

		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				b.count(func(s *Stats) { s.Recovered++ })
				b.logger.Info("operation succeeded after retry", zap.Int("attempts", attempt+1))
			}
			return nil
		}

		if !Retryable(err) {
			return err
		}
		if attempt >= b.cfg.MaxRetries {
			b.count(func(s *Stats) { s.Exhausted++ })
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt+1, err)
		}

		delay := b.delay(err, attempt)
		b.count(func(s *Stats) { s.Retries++ })
		b.logger.Warn("operation failed, retrying with backoff",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)

		if err := b.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Stats returns a copy of the counters.
func (b *Backoff) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *Backoff) count(f func(s *Stats)) {
	b.mu.Lock()
	f(&b.stats)
	b.mu.Unlock()
}

func (b *Backoff) delay(err error, attempt int) time.Duration {
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		return min(se.RetryAfter, b.cfg.MaxDelay)
	}

	d := float64(b.cfg.InitialDelay) * math.Pow(b.cfg.Multiplier, float64(attempt))
	if b.cfg.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.cfg.Jitter
	}
	return min(time.Duration(d), b.cfg.MaxDelay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

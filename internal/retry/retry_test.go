package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/jkindrix/bluehome/internal/errors"
)

func newTestBackoff(maxRetries int) (*Backoff, *[]time.Duration) {
	b := New(Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, MaxRetries: maxRetries}, zap.NewNop())
	var slept []time.Duration
	b.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return b, &slept
}

func TestExecute_SucceedsAfterRetry(t *testing.T) {
	b, slept := newTestBackoff(3)

	calls := 0
	err := b.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(*slept) != 2 || (*slept)[0] != 100*time.Millisecond || (*slept)[1] != 200*time.Millisecond {
		t.Errorf("expected delays [100ms 200ms], got %v", *slept)
	}

	stats := b.Stats()
	if stats.Attempts != 3 || stats.Retries != 2 || stats.Recovered != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestExecute_Exhausted(t *testing.T) {
	b, _ := newTestBackoff(2)
	cause := errors.New("timeout")

	calls := 0
	err := b.Execute(context.Background(), func(context.Context) error {
		calls++
		return cause
	})
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be wrapped, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if b.Stats().Exhausted != 1 {
		t.Errorf("expected 1 exhausted, got %d", b.Stats().Exhausted)
	}
}

func TestExecute_NotRetryable(t *testing.T) {
	b, slept := newTestBackoff(3)
	cause := &StatusError{Err: errors.New("bad token"), StatusCode: http.StatusUnauthorized}

	calls := 0
	err := b.Execute(context.Background(), func(context.Context) error {
		calls++
		return cause
	})
	if !errors.Is(err, cause) || errors.Is(err, ErrExhausted) {
		t.Errorf("expected the original error, got %v", err)
	}
	if calls != 1 || len(*slept) != 0 {
		t.Errorf("expected a single call without sleeping, got %d calls", calls)
	}
}

func TestExecute_ZeroRetries(t *testing.T) {
	b, _ := newTestBackoff(0)

	calls := 0
	_ = b.Execute(context.Background(), func(context.Context) error {
		calls++
		return errors.New("down")
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestExecute_ContextCanceledDuringSleep(t *testing.T) {
	b := New(Config{InitialDelay: time.Hour, MaxDelay: time.Hour, MaxRetries: 3}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	err := b.Execute(ctx, func(context.Context) error {
		cancel()
		return errors.New("flaky")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transport", errors.New("dial tcp: refused"), true},
		{"canceled", fmt.Errorf("wrapped: %w", context.Canceled), false},
		{"deadline", context.DeadlineExceeded, false},
		{"429", &StatusError{Err: errors.New("slow down"), StatusCode: http.StatusTooManyRequests}, true},
		{"408", &StatusError{Err: errors.New("timeout"), StatusCode: http.StatusRequestTimeout}, true},
		{"502", &StatusError{Err: errors.New("bad gateway"), StatusCode: http.StatusBadGateway}, true},
		{"400", &StatusError{Err: errors.New("bad request"), StatusCode: http.StatusBadRequest}, false},
		{"transient app error", apperrors.CatalogUnavailable(errors.New("sheet down")), true},
		{"user app error", apperrors.NotFound("property"), false},
		{"404", fmt.Errorf("wrapped: %w", &StatusError{Err: errors.New("gone"), StatusCode: http.StatusNotFound}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDelay_RetryAfterCapped(t *testing.T) {
	b, slept := newTestBackoff(1)

	calls := 0
	_ = b.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return &StatusError{Err: errors.New("rate limited"), StatusCode: http.StatusTooManyRequests, RetryAfter: time.Minute}
		}
		return nil
	})
	if len(*slept) != 1 || (*slept)[0] != time.Second {
		t.Errorf("expected Retry-After capped at 1s, got %v", *slept)
	}
}

func TestFromResponse(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusServiceUnavailable, Header: http.Header{}}
	resp.Header.Set("Retry-After", "3")

	err := FromResponse(resp, errors.New("maintenance"))

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable || se.RetryAfter != 3*time.Second {
		t.Errorf("unexpected status error: %+v", se)
	}
	if err.Error() != "maintenance" {
		t.Errorf("expected message to pass through, got %q", err.Error())
	}
}

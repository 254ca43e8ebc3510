package shutdown

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCoordinator_PhasesRunInOrder(t *testing.T) {
	coord := NewCoordinator(&Config{Timeout: 5 * time.Second}, zap.NewNop())

	var mu sync.Mutex
	var order []Phase
	// Registered in reverse so the order can only come from the phase.
	for i := len(phases) - 1; i >= 0; i-- {
		p := phases[i]
		coord.RegisterFunc(p, p.String(), func(context.Context) error {
			mu.Lock()
			order = append(order, p)
			mu.Unlock()
			return nil
		})
	}

	if err := coord.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != len(phases) {
		t.Fatalf("expected %d phases, got %v", len(phases), order)
	}
	for i, p := range phases {
		if order[i] != p {
			t.Errorf("position %d: expected %v, got %v", i, p, order[i])
		}
	}
}

func TestCoordinator_HooksInPhaseRunConcurrently(t *testing.T) {
	coord := NewCoordinator(&Config{Timeout: 5 * time.Second}, zap.NewNop())

	var arrived sync.WaitGroup
	arrived.Add(2)
	for _, name := range []string{"sessions-sweep", "ratelimit-cleanup"} {
		coord.RegisterFunc(PhaseShutdown, name, func(ctx context.Context) error {
			arrived.Done()
			both := make(chan struct{})
			go func() { arrived.Wait(); close(both) }()
			select {
			case <-both:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	if err := coord.Shutdown(context.Background()); err != nil {
		t.Errorf("expected both hooks to meet, got %v", err)
	}
}

func TestCoordinator_JoinsErrors(t *testing.T) {
	coord := NewCoordinator(&Config{Timeout: 5 * time.Second}, zap.NewNop())
	errRedis := errors.New("redis close failed")

	coord.RegisterFunc(PhaseCleanup, "redis", func(context.Context) error { return errRedis })
	coord.RegisterFunc(PhaseCleanup, "postgres", func(context.Context) error { return nil })

	err := coord.Shutdown(context.Background())
	if !errors.Is(err, errRedis) {
		t.Fatalf("expected redis error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "redis: ") {
		t.Errorf("expected error prefixed with hook name, got %q", err.Error())
	}
}

func TestCoordinator_TimeoutStopsLaterPhases(t *testing.T) {
	coord := NewCoordinator(&Config{Timeout: 50 * time.Millisecond}, zap.NewNop())

	coord.RegisterFunc(PhaseDrain, "http", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	var cleaned atomic.Bool
	coord.RegisterFunc(PhaseCleanup, "postgres", func(context.Context) error {
		cleaned.Store(true)
		return nil
	})

	start := time.Now()
	err := coord.Shutdown(context.Background())
	if time.Since(start) > time.Second {
		t.Error("expected shutdown to stop at the timeout")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if cleaned.Load() {
		t.Error("expected cleanup phase to be skipped after the timeout")
	}
}

func TestCoordinator_RunsOnce(t *testing.T) {
	coord := NewCoordinator(nil, zap.NewNop())

	var calls atomic.Int32
	coord.RegisterFunc(PhaseShutdown, "workers", func(context.Context) error {
		calls.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = coord.Shutdown(context.Background())
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestCoordinator_Ready(t *testing.T) {
	coord := NewCoordinator(nil, zap.NewNop())

	var readyDuringDrain atomic.Bool
	readyDuringDrain.Store(true)
	coord.RegisterFunc(PhasePreDrain, "probe", func(context.Context) error {
		readyDuringDrain.Store(coord.Ready())
		return nil
	})

	if !coord.Ready() {
		t.Error("expected ready before shutdown")
	}
	_ = coord.Shutdown(context.Background())

	if coord.Ready() {
		t.Error("expected not ready after shutdown")
	}
	if readyDuringDrain.Load() {
		t.Error("expected hooks to observe not ready")
	}
}

func TestPhase_String(t *testing.T) {
	tests := map[Phase]string{
		PhasePreDrain: "pre-drain",
		PhaseDrain:    "drain",
		PhaseShutdown: "shutdown",
		PhaseCleanup:  "cleanup",
		Phase(99):     "unknown",
	}
	for p, want := range tests {
		if got := p.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", p, got, want)
		}
	}
}

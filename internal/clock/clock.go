// Package clock lets TTL-driven code (session expiry, catalog freshness,
// breaker timeouts, rate limiter cleanup) run against a fake time source.
package clock

import (
	"sync"
	"time"
)

// Clock is the subset of package time the server depends on.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	NewTicker(d time.Duration) Ticker
}

// Ticker is the receive side of a time.Ticker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// New returns the system clock.
func New() Clock {
	return system{}
}

type system struct{}

func (system) Now() time.Time                  { return time.Now() }
func (system) Since(t time.Time) time.Duration { return time.Since(t) }
func (system) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// Mock is a manually driven Clock. Time moves only through Advance, which
// also delivers at most one tick to every ticker whose period has elapsed.
type Mock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

// NewMock creates a Mock frozen at start.
func NewMock(start time.Time) *Mock {
	return &Mock{now: start}
}

func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Mock) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}

func (m *Mock) NewTicker(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	ft := &fakeTicker{ch: make(chan time.Time, 1), period: d, due: m.now.Add(d)}
	m.tickers = append(m.tickers, ft)
	return ft
}

// Advance moves the clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	live := m.tickers[:0]
	var due []*fakeTicker
	for _, ft := range m.tickers {
		if ft.stopped() {
			continue
		}
		live = append(live, ft)
		if !now.Before(ft.due) {
			for !now.Before(ft.due) {
				ft.due = ft.due.Add(ft.period)
			}
			due = append(due, ft)
		}
	}
	m.tickers = live
	m.mu.Unlock()

	for _, ft := range due {
		// A tick still pending in the channel is dropped, as time.Ticker does.
		select {
		case ft.ch <- now:
		default:
		}
	}
}

type fakeTicker struct {
	ch     chan time.Time
	period time.Duration
	due    time.Time

	mu   sync.Mutex
	done bool
}

func (ft *fakeTicker) C() <-chan time.Time { return ft.ch }

func (ft *fakeTicker) Stop() {
	ft.mu.Lock()
	ft.done = true
	ft.mu.Unlock()
}

func (ft *fakeTicker) stopped() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.done
}

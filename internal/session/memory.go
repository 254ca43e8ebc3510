package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/clock"
	"github.com/jkindrix/bluehome/internal/domain"
)

type memoryEntry struct {
	session   *domain.Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Stored and returned sessions are
// copies, so callers never share state with the map.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   clock.Clock
	logger  *zap.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(ttl time.Duration, clk clock.Clock, logger *zap.Logger) *MemoryStore {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		clock:   clk,
		logger:  logger.Named("session.memory"),
		stop:    make(chan struct{}),
	}
}

// Get returns a copy of the live session.
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok || !s.clock.Now().Before(entry.expiresAt) {
		return nil, domain.ErrSessionNotFound
	}
	return entry.session.Clone(), nil
}

// Save stores a copy and restarts its TTL.
func (s *MemoryStore) Save(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sess.ID] = memoryEntry{
		session:   sess.Clone(),
		expiresAt: s.clock.Now().Add(s.ttl),
	}
	return nil
}

// Delete removes a session. Unknown ids are ignored.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep removes expired entries and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// StartCleanup sweeps every interval until Close.
func (s *MemoryStore) StartCleanup(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := s.clock.NewTicker(interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C():
				if n := s.Sweep(); n > 0 {
					s.logger.Debug("expired sessions removed", zap.Int("count", n))
				}
			}
		}
	}()
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}

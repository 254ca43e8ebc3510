package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/circuitbreaker"
	"github.com/jkindrix/bluehome/internal/clock"
	"github.com/jkindrix/bluehome/internal/domain"
	apperrors "github.com/jkindrix/bluehome/internal/errors"
	"github.com/jkindrix/bluehome/internal/metrics"
)

const (
	// DefaultTTL is how long a fetched snapshot is served before refetching.
	DefaultTTL = 60 * time.Second
	// DefaultLimit is the page size of Search.
	DefaultLimit = 5
)

// Config configures a Catalog.
type Config struct {
	TTL     time.Duration
	Clock   clock.Clock
	Breaker *circuitbreaker.Config
}

// Status describes the cached snapshot.
type Status struct {
	Loaded   bool      `json:"loaded"`
	Size     int       `json:"size"`
	Stale    bool      `json:"stale"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
}

// Catalog is a TTL cache over a Source.
type Catalog struct {
	source  Source
	ttl     time.Duration
	clock   clock.Clock
	breaker *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
	logger  *zap.Logger

	// fetchMu serializes fetches; mu guards the snapshot.
	fetchMu  sync.Mutex
	mu       sync.RWMutex
	snapshot []domain.Property
	loadedAt time.Time
	loaded   bool
	stale    bool
}

// New creates a catalog over source. A nil source yields an empty catalog.
func New(source Source, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Catalog {
	if logger == nil {
		panic("logger is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	bcfg := circuitbreaker.DefaultConfig()
	if cfg.Breaker != nil {
		copied := *cfg.Breaker
		bcfg = &copied
	}
	bcfg.Clock = cfg.Clock
	bcfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		m.SetCircuitBreakerState(name, int(to))
	}

	return &Catalog{
		source:  source,
		ttl:     cfg.TTL,
		clock:   cfg.Clock,
		breaker: circuitbreaker.New("catalog", bcfg, logger),
		metrics: m,
		logger:  logger.Named("catalog"),
	}
}

// Properties returns the current listings, fetching when the snapshot is older than the TTL.
func (c *Catalog) Properties(ctx context.Context) ([]domain.Property, error) {
	if c.source == nil {
		return nil, nil
	}
	if props, ok := c.fresh(); ok {
		return props, nil
	}

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	// Another caller may have refreshed while we waited.
	if props, ok := c.fresh(); ok {
		return props, nil
	}
	return c.fetchLocked(ctx)
}

// Refresh forces a reload regardless of the TTL.
func (c *Catalog) Refresh(ctx context.Context) (Status, error) {
	if c.source == nil {
		return c.Status(), nil
	}
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	_, err := c.fetchLocked(ctx)
	return c.Status(), err
}

func (c *Catalog) fresh() ([]domain.Property, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded || c.clock.Since(c.loadedAt) >= c.ttl {
		return nil, false
	}
	return c.snapshot, true
}

func (c *Catalog) fetchLocked(ctx context.Context) ([]domain.Property, error) {
	start := c.clock.Now()
	var props []domain.Property
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var loadErr error
		props, loadErr = c.source.Load(ctx)
		return loadErr
	})
	c.metrics.RecordCatalogFetch(err == nil, c.clock.Since(start), len(props))

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if !c.loaded {
			c.logger.Error("catalog fetch failed with no snapshot", zap.Error(err))
			return nil, apperrors.CatalogUnavailable(err)
		}
		c.stale = true
		c.metrics.RecordCatalogStale()
		c.logger.Warn("catalog fetch failed, serving stale snapshot",
			zap.Error(err),
			zap.Time("loaded_at", c.loadedAt),
			zap.Int("size", len(c.snapshot)),
		)
		return c.snapshot, nil
	}

	c.snapshot = props
	c.loadedAt = c.clock.Now()
	c.loaded = true
	c.stale = false
	c.logger.Debug("catalog refreshed", zap.Int("size", len(props)))
	return props, nil
}

// Status reports the snapshot state without fetching.
func (c *Catalog) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		Loaded:   c.loaded,
		Size:     len(c.snapshot),
		Stale:    c.stale,
		LoadedAt: c.loadedAt,
	}
}

// Breaker exposes the fetch circuit breaker for health reporting.
func (c *Catalog) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// FindByCode looks a property up by code. The trimmed code must equal the row
// code, or both digit-only forms must be equal and non-empty.
func (c *Catalog) FindByCode(ctx context.Context, code string) (*domain.Property, error) {
	props, err := c.Properties(ctx)
	if err != nil {
		return nil, err
	}

	code = strings.TrimSpace(code)
	digits := domain.DigitsOnly(code)
	for i := range props {
		p := props[i]
		if strings.TrimSpace(p.Code) == code {
			return &p, nil
		}
		if digits != "" && p.CodeDigits() == digits {
			return &p, nil
		}
	}
	return nil, apperrors.NotFound("property")
}

// Search returns available properties matching filters, in source order,
// windowed by filters.Offset and limit. total counts every match.
func (c *Catalog) Search(ctx context.Context, filters domain.SearchFilters, limit int) ([]domain.Property, int, error) {
	props, err := c.Properties(ctx)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	wantType := Fold(string(filters.Type))
	var matches []domain.Property
	for _, p := range props {
		if !p.IsAvailable() {
			continue
		}
		if wantType != "" && !strings.Contains(Fold(p.Type), wantType) {
			continue
		}
		if filters.MaxRent > 0 && p.Rent > filters.MaxRent {
			continue
		}
		if filters.MinBedrooms > 0 && p.Bedrooms < filters.MinBedrooms {
			continue
		}
		matches = append(matches, p)
	}

	total := len(matches)
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

// Codes returns the number of listings and the first n codes.
func (c *Catalog) Codes(ctx context.Context, n int) (int, []string, error) {
	props, err := c.Properties(ctx)
	if err != nil {
		return 0, nil, err
	}
	if n <= 0 || n > len(props) {
		n = len(props)
	}
	codes := make([]string, 0, n)
	for _, p := range props[:n] {
		codes = append(codes, p.Code)
	}
	return len(props), codes, nil
}

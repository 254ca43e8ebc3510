package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/database"
	"github.com/jkindrix/bluehome/internal/domain"
	apperrors "github.com/jkindrix/bluehome/internal/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// LeadRepository implements domain.LeadRepository using PostgreSQL.
type LeadRepository struct {
	db     database.Querier
	logger *zap.Logger
}

// NewLeadRepository creates a new LeadRepository.
func NewLeadRepository(db database.Querier, logger *zap.Logger) *LeadRepository {
	return &LeadRepository{db: db, logger: logger}
}

// Create validates and inserts a lead.
func (r *LeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	if err := lead.Validate(); err != nil {
		return err
	}

	ctx, cancel := bounded(ctx, writeTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, LeadColumns.InsertQuery(),
		lead.ID,
		string(lead.Kind),
		lead.SessionID,
		lead.Name,
		lead.Phone,
		lead.Address,
		string(lead.PropertyType),
		lead.AskingPrice,
		lead.PropertyCode,
		lead.Notes,
		lead.CreatedAt,
	)
	if err != nil {
		return apperrors.DatabaseError("insert lead", err)
	}
	r.logger.Debug("lead stored", zap.String("lead_id", lead.ID.String()), zap.String("kind", string(lead.Kind)))
	return nil
}

// ListRecent returns the newest leads first.
func (r *LeadRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Lead, error) {
	limit = normalizeLimit(limit)

	ctx, cancel := bounded(ctx, listTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM leads ORDER BY created_at DESC LIMIT $1", LeadColumns.Select())
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, apperrors.DatabaseError("list leads", err)
	}

	leads, err := pgx.CollectRows(rows, scanLead)
	if err != nil {
		return nil, apperrors.DatabaseError("scan leads", err)
	}
	return leads, nil
}

func scanLead(row pgx.CollectableRow) (*domain.Lead, error) {
	var (
		l            domain.Lead
		kind         string
		propertyType string
	)
	err := row.Scan(
		&l.ID,
		&kind,
		&l.SessionID,
		&l.Name,
		&l.Phone,
		&l.Address,
		&propertyType,
		&l.AskingPrice,
		&l.PropertyCode,
		&l.Notes,
		&l.CreatedAt,
	)
	l.Kind = domain.LeadKind(kind)
	l.PropertyType = domain.PropertyType(propertyType)
	return &l, err
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// MemoryLeadRepository keeps leads in process for deployments without a database.
type MemoryLeadRepository struct {
	mu    sync.RWMutex
	leads []*domain.Lead
}

// NewMemoryLeadRepository creates an empty repository.
func NewMemoryLeadRepository() *MemoryLeadRepository {
	return &MemoryLeadRepository{}
}

// Create validates and stores a copy of lead.
func (r *MemoryLeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	if err := lead.Validate(); err != nil {
		return err
	}
	copied := *lead
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads = append(r.leads, &copied)
	return nil
}

// ListRecent returns copies of the newest leads first.
func (r *MemoryLeadRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Lead, error) {
	limit = normalizeLimit(limit)

	r.mu.RLock()
	out := make([]*domain.Lead, 0, len(r.leads))
	for _, l := range r.leads {
		copied := *l
		out = append(out, &copied)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

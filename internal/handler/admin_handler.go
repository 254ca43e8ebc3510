package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/audit"
	"github.com/jkindrix/bluehome/internal/catalog"
	"github.com/jkindrix/bluehome/internal/domain"
	apperrors "github.com/jkindrix/bluehome/internal/errors"
	"github.com/jkindrix/bluehome/internal/middleware"
)

const (
	// debugSampleSize is how many codes /api/debug/codes lists.
	debugSampleSize = 10
	// defaultLeadsLimit is the page size of /admin/leads.
	defaultLeadsLimit = 50
)

// CatalogAdmin is the catalog surface used by the debug and admin routes.
type CatalogAdmin interface {
	FindByCode(ctx context.Context, code string) (*domain.Property, error)
	Codes(ctx context.Context, n int) (int, []string, error)
	Refresh(ctx context.Context) (catalog.Status, error)
}

// LeadLister lists captured leads, newest first.
type LeadLister interface {
	ListRecent(ctx context.Context, limit int) ([]*domain.Lead, error)
}

// AdminHandler serves the token protected debug and admin routes.
type AdminHandler struct {
	catalog   CatalogAdmin
	leads     LeadLister
	logLevel  *LogLevelHandler
	tokenHash string
	audit     *audit.Logger
	logger    *zap.Logger
}

// AdminHandlerConfig holds configuration for AdminHandler.
type AdminHandlerConfig struct {
	Catalog  CatalogAdmin
	Leads    LeadLister
	LogLevel *LogLevelHandler
	// TokenHash is the bcrypt hash of the admin token. Empty hides every route.
	TokenHash string
	// Audit records admin access and actions. Optional.
	Audit  *audit.Logger
	Logger *zap.Logger
}

// NewAdminHandler creates a new AdminHandler with all required dependencies.
func NewAdminHandler(cfg AdminHandlerConfig) *AdminHandler {
	if cfg.Logger == nil {
		panic("logger is required")
	}
	return &AdminHandler{
		catalog:   cfg.Catalog,
		leads:     cfg.Leads,
		logLevel:  cfg.LogLevel,
		tokenHash: cfg.TokenHash,
		audit:     cfg.Audit,
		logger:    cfg.Logger,
	}
}

// RegisterRoutes registers admin routes behind the admin token.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminAuth(h.tokenHash, h.audit, h.logger))

		if h.catalog != nil {
			r.Get("/api/debug/codes", h.HandleDebugCodes)
			r.Get("/api/debug/peek", h.HandleDebugPeek)
			r.Post("/admin/catalog/refresh", h.HandleCatalogRefresh)
		}
		if h.leads != nil {
			r.Get("/admin/leads", h.HandleListLeads)
		}
		if h.logLevel != nil {
			r.Handle("/admin/log-level", h.logLevel)
		}
	})
}

// DebugCodesResponse is the body of /api/debug/codes.
type DebugCodesResponse struct {
	Count  int      `json:"count"`
	Sample []string `json:"sample"`
}

// DebugPeekResponse is the body of /api/debug/peek.
type DebugPeekResponse struct {
	Input    string           `json:"input"`
	Found    bool             `json:"found"`
	Property *domain.Property `json:"property"`
}

// LeadsResponse is the body of /admin/leads.
type LeadsResponse struct {
	Leads []*domain.Lead `json:"leads"`
	Count int            `json:"count"`
}

// HandleDebugCodes handles GET /api/debug/codes.
func (h *AdminHandler) HandleDebugCodes(w http.ResponseWriter, r *http.Request) {
	count, sample, err := h.catalog.Codes(r.Context(), debugSampleSize)
	if err != nil {
		h.writeFailure(w, r, "failed to list codes", err)
		return
	}
	writeJSON(w, r, http.StatusOK, DebugCodesResponse{Count: count, Sample: sample}, h.logger)
}

// HandleDebugPeek handles GET /api/debug/peek?code=. Unlike /api/property it
// returns unavailable listings too.
func (h *AdminHandler) HandleDebugPeek(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	resp := DebugPeekResponse{Input: code}

	p, err := h.catalog.FindByCode(r.Context(), code)
	switch {
	case err == nil:
		resp.Found = true
		resp.Property = p
	case !apperrors.IsNotFound(err):
		h.writeFailure(w, r, "failed to peek code", err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp, h.logger)
}

// HandleCatalogRefresh handles POST /admin/catalog/refresh and refetches the sheet.
func (h *AdminHandler) HandleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	status, err := h.catalog.Refresh(r.Context())
	h.audit.CatalogRefreshed(r.Context(), r.RemoteAddr, middleware.GetRequestID(r.Context()), status.Size, err)
	if err != nil {
		h.writeFailure(w, r, "catalog refresh failed", err)
		return
	}
	middleware.LoggerWithCorrelation(r.Context(), h.logger).Info("catalog refreshed by admin",
		zap.Int("size", status.Size),
	)
	writeJSON(w, r, http.StatusOK, status, h.logger)
}

// HandleListLeads handles GET /admin/leads?limit=.
func (h *AdminHandler) HandleListLeads(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeadsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer", h.logger)
			return
		}
		limit = n
	}

	leads, err := h.leads.ListRecent(r.Context(), limit)
	if err != nil {
		h.writeFailure(w, r, "failed to list leads", err)
		return
	}
	if leads == nil {
		leads = []*domain.Lead{}
	}
	h.audit.LeadsRead(r.Context(), r.RemoteAddr, middleware.GetRequestID(r.Context()), len(leads))
	writeJSON(w, r, http.StatusOK, LeadsResponse{Leads: leads, Count: len(leads)}, h.logger)
}

func (h *AdminHandler) writeFailure(w http.ResponseWriter, r *http.Request, msg string, err error) {
	middleware.LoggerWithCorrelation(r.Context(), h.logger).Error(msg, zap.Error(err))
	writeError(w, r, apperrors.GetHTTPStatus(err), err.Error(), h.logger)
}

package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/catalog"
	"github.com/jkindrix/bluehome/internal/conversation"
	"github.com/jkindrix/bluehome/internal/domain"
	apperrors "github.com/jkindrix/bluehome/internal/errors"
	"github.com/jkindrix/bluehome/internal/format"
	"github.com/jkindrix/bluehome/internal/middleware"
	"github.com/jkindrix/bluehome/internal/webhook"
)

// unavailableMessage is returned for a listing that exists but is not for rent.
const unavailableMessage = "No disponible"

// PropertyFinder looks listings up.
type PropertyFinder interface {
	FindByCode(ctx context.Context, code string) (*domain.Property, error)
	Search(ctx context.Context, filters domain.SearchFilters, limit int) ([]domain.Property, int, error)
}

// PropertyHandler serves the listing lookup API.
type PropertyHandler struct {
	catalog    PropertyFinder
	maxResults int
	logger     *zap.Logger
}

// PropertyHandlerConfig holds configuration for PropertyHandler.
type PropertyHandlerConfig struct {
	Catalog    PropertyFinder
	MaxResults int
	Logger     *zap.Logger
}

// NewPropertyHandler creates a new PropertyHandler with all required dependencies.
func NewPropertyHandler(cfg PropertyHandlerConfig) *PropertyHandler {
	if cfg.Logger == nil {
		panic("logger is required")
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = catalog.DefaultLimit
	}
	return &PropertyHandler{
		catalog:    cfg.Catalog,
		maxResults: maxResults,
		logger:     cfg.Logger,
	}
}

// RegisterRoutes registers listing routes on the router.
func (h *PropertyHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/property", h.HandleGetProperty)
	r.Post("/api/search", h.HandleSearch)
}

// PropertyResponse is the body of a successful /api/property lookup.
type PropertyResponse struct {
	Available bool             `json:"available"`
	Property  *domain.Property `json:"property,omitempty"`
	Message   string           `json:"message"`
	Code      string           `json:"code,omitempty"`
}

// SearchRequest is the body of /api/search. Values may be numbers or strings
// such as "2 millones".
type SearchRequest struct {
	Type     string             `json:"tipo"`
	Budget   webhook.FlexString `json:"presupuesto"`
	Bedrooms webhook.FlexString `json:"habitaciones"`
}

// SearchResponse is the body of /api/search.
type SearchResponse struct {
	Results  []domain.Property `json:"results"`
	Count    int               `json:"count"`
	Messages []string          `json:"messages"`
}

// HandleGetProperty handles GET /api/property?code=.
func (h *PropertyHandler) HandleGetProperty(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, r, http.StatusBadRequest, "missing code", h.logger)
		return
	}

	p, err := h.catalog.FindByCode(r.Context(), code)
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}

	if !p.IsAvailable() {
		writeJSON(w, r, http.StatusOK, PropertyResponse{Message: unavailableMessage, Code: code}, h.logger)
		return
	}
	writeJSON(w, r, http.StatusOK, PropertyResponse{
		Available: true,
		Property:  p,
		Message:   format.Property(*p),
	}, h.logger)
}

// HandleSearch handles POST /api/search.
func (h *PropertyHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body", h.logger)
		return
	}

	filters := domain.SearchFilters{
		Type:        searchType(req.Type),
		MaxRent:     conversation.ParseAmount(req.Budget.String()),
		MinBedrooms: atoiOrZero(req.Bedrooms.String()),
	}

	results, _, err := h.catalog.Search(r.Context(), filters, h.maxResults)
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}

	resp := SearchResponse{
		Results:  make([]domain.Property, 0, len(results)),
		Messages: make([]string, 0, len(results)),
	}
	for _, p := range results {
		resp.Results = append(resp.Results, p)
		resp.Messages = append(resp.Messages, format.Property(p))
	}
	resp.Count = len(resp.Results)
	writeJSON(w, r, http.StatusOK, resp, h.logger)
}

func (h *PropertyHandler) writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.IsNotFound(err) {
		writeError(w, r, http.StatusNotFound, "not found", h.logger)
		return
	}
	middleware.LoggerWithCorrelation(r.Context(), h.logger).Error("catalog lookup failed", zap.Error(err))
	writeError(w, r, apperrors.GetHTTPStatus(err), err.Error(), h.logger)
}

// searchType maps free text onto a known type. Unknown text is kept folded
// so it still narrows the search as a substring.
func searchType(text string) domain.PropertyType {
	if text = strings.TrimSpace(text); text == "" {
		return ""
	}
	if t := catalog.ParseType(text); t != "" {
		return t
	}
	return domain.PropertyType(catalog.Fold(text))
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(domain.DigitsOnly(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/audit"
	"github.com/jkindrix/bluehome/internal/logging"
	"github.com/jkindrix/bluehome/internal/middleware"
)

// LevelController reads and changes the process log level. *logging.Logger implements it.
type LevelController interface {
	GetLevel() string
	SetLevel(level string) error
}

// LogLevelHandler serves GET and PUT/POST on /admin/log-level.
type LogLevelHandler struct {
	level  LevelController
	audit  *audit.Logger
	logger *zap.Logger
}

// NewLogLevelHandler creates a LogLevelHandler. auditLog may be nil.
func NewLogLevelHandler(level LevelController, auditLog *audit.Logger, logger *zap.Logger) *LogLevelHandler {
	return &LogLevelHandler{level: level, audit: auditLog, logger: logger}
}

// LogLevelResponse is the body of every successful answer.
type LogLevelResponse struct {
	Level           string   `json:"level"`
	AvailableLevels []string `json:"available_levels,omitempty"`
	Message         string   `json:"message,omitempty"`
}

// LogLevelRequest is the JSON form of a change.
type LogLevelRequest struct {
	Level string `json:"level"`
}

func (h *LogLevelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, r, http.StatusOK, LogLevelResponse{
			Level:           h.level.GetLevel(),
			AvailableLevels: logging.AvailableLevels(),
		}, h.logger)
	case http.MethodPut, http.MethodPost:
		h.change(w, r)
	default:
		w.Header().Set("Allow", "GET, PUT, POST")
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", h.logger)
	}
}

// requestedLevel reads the level from the query string, a form body or a
// JSON body, in that order.
func requestedLevel(r *http.Request) string {
	if v := r.URL.Query().Get("level"); v != "" {
		return v
	}
	if r.ParseForm() == nil {
		if v := r.PostFormValue("level"); v != "" {
			return v
		}
	}
	var body LogLevelRequest
	if r.Body != nil && json.NewDecoder(r.Body).Decode(&body) == nil {
		return body.Level
	}
	return ""
}

func (h *LogLevelHandler) change(w http.ResponseWriter, r *http.Request) {
	raw := requestedLevel(r)
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, "level parameter is required", h.logger)
		return
	}
	parsed, err := logging.ParseLevel(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest,
			fmt.Sprintf("%v (valid: %v)", err, logging.AvailableLevels()), h.logger)
		return
	}

	from, to := h.level.GetLevel(), parsed.String()
	if from == to {
		writeJSON(w, r, http.StatusOK, LogLevelResponse{Level: to, Message: "log level unchanged"}, h.logger)
		return
	}
	if err := h.level.SetLevel(to); err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error(), h.logger)
		return
	}
	h.audit.LogLevelChanged(r.Context(), r.RemoteAddr, middleware.GetRequestID(r.Context()), from, to)

	writeJSON(w, r, http.StatusOK, LogLevelResponse{
		Level:   to,
		Message: fmt.Sprintf("log level changed from %s to %s", from, to),
	}, h.logger)
}

// Package handler provides the HTTP handlers of the chatbot backend.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/middleware"
)

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes data as JSON with the given status, echoing the request id.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if reqID := middleware.GetRequestID(r.Context()); reqID != "" {
		w.Header().Set("X-Request-ID", reqID)
	}
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := encodeJSON(w, data); err != nil && logger != nil {
		logger.Debug("failed to write JSON response", zap.Error(err))
	}
}

// writeError writes an ErrorResponse.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string, logger *zap.Logger) {
	writeJSON(w, r, status, ErrorResponse{
		Error:     message,
		RequestID: middleware.GetRequestID(r.Context()),
	}, logger)
}

// helper to write JSON
func encodeJSON(w http.ResponseWriter, data interface{}) error {
	return json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

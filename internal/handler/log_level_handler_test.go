package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jkindrix/bluehome/internal/audit"
	"github.com/jkindrix/bluehome/internal/logging"
)

func TestLogLevelHandler_Get(t *testing.T) {
	h := NewLogLevelHandler(logging.NewNop(), nil, zap.NewNop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/log-level", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp LogLevelResponse
	decodeBody(t, rec, &resp)
	if resp.Level != "info" {
		t.Errorf("expected level info, got %s", resp.Level)
	}
	if len(resp.AvailableLevels) != 4 {
		t.Errorf("expected 4 available levels, got %v", resp.AvailableLevels)
	}
}

func TestLogLevelHandler_Change(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		url         string
		contentType string
		body        string
		wantStatus  int
		wantLevel   string
	}{
		{"query param", http.MethodPut, "/admin/log-level?level=debug", "", "", http.StatusOK, "debug"},
		{"json body", http.MethodPut, "/admin/log-level", "application/json", `{"level": "warn"}`, http.StatusOK, "warn"},
		{"form body", http.MethodPost, "/admin/log-level", "application/x-www-form-urlencoded", "level=error", http.StatusOK, "error"},
		{"alias", http.MethodPut, "/admin/log-level?level=WARNING", "", "", http.StatusOK, "warn"},
		{"missing", http.MethodPut, "/admin/log-level", "", "", http.StatusBadRequest, "info"},
		{"unknown", http.MethodPut, "/admin/log-level?level=loud", "", "", http.StatusBadRequest, "info"},
		{"method not allowed", http.MethodDelete, "/admin/log-level", "", "", http.StatusMethodNotAllowed, "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := logging.NewNop()
			h := NewLogLevelHandler(level, nil, zap.NewNop())

			req := httptest.NewRequest(tt.method, tt.url, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := level.GetLevel(); got != tt.wantLevel {
				t.Errorf("expected level %s, got %s", tt.wantLevel, got)
			}
		})
	}
}

func TestLogLevelHandler_UnchangedIsNotAudited(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewLogLevelHandler(logging.NewNop(), audit.NewLogger(zap.New(core)), zap.NewNop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/log-level?level=info", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp LogLevelResponse
	decodeBody(t, rec, &resp)
	if resp.Message != "log level unchanged" {
		t.Errorf("expected unchanged message, got %q", resp.Message)
	}
	if logs.Len() != 0 {
		t.Errorf("expected no audit event, got %d", logs.Len())
	}
}

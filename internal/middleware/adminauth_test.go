package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/jkindrix/bluehome/internal/audit"
)

func TestAdminAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-admin"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		hash     string
		token    string
		expected int
		audited  int
	}{
		{"valid token", string(hash), "s3cret-admin", http.StatusOK, 0},
		{"wrong token", string(hash), "guess", http.StatusUnauthorized, 1},
		{"missing token", string(hash), "", http.StatusUnauthorized, 1},
		{"admin disabled", "", "s3cret-admin", http.StatusNotFound, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.InfoLevel)
			called := false
			handler := AdminAuth(tt.hash, audit.NewLogger(zap.New(core)), zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/debug/codes", nil)
			if tt.token != "" {
				req.Header.Set(AdminTokenHeader, tt.token)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, rr.Code)
			}
			if called != (tt.expected == http.StatusOK) {
				t.Errorf("handler called = %v, expected %v", called, tt.expected == http.StatusOK)
			}
			if got := logs.FilterField(zap.String("event_type", string(audit.EventAccessDenied))).Len(); got != tt.audited {
				t.Errorf("expected %d audit events, got %d", tt.audited, got)
			}
		})
	}
}

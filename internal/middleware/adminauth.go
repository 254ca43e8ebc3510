package middleware

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jkindrix/bluehome/internal/audit"
)

// AdminTokenHeader carries the plain admin token.
const AdminTokenHeader = "X-Admin-Token"

// AdminAuth guards debug and admin routes with a bcrypt-hashed shared token.
// With an empty hash the routes answer 404, as if they were not mounted.
// Rejected tokens are written to auditLog, which may be nil.
func AdminAuth(tokenHash string, auditLog *audit.Logger, logger *zap.Logger) func(http.Handler) http.Handler {
	hash := []byte(tokenHash)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(hash) == 0 {
				writeJSONError(w, http.StatusNotFound, "not found")
				return
			}

			token := r.Header.Get(AdminTokenHeader)
			if token == "" {
				auditLog.AccessDenied(r.Context(), r.URL.Path, getClientIP(r), GetRequestID(r.Context()), "missing admin token")
				writeJSONError(w, http.StatusUnauthorized, "missing admin token")
				return
			}

			if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
				LoggerWithCorrelation(r.Context(), logger).Warn("admin token rejected",
					zap.String("path", r.URL.Path),
					zap.String("ip", getClientIP(r)),
				)
				auditLog.AccessDenied(r.Context(), r.URL.Path, getClientIP(r), GetRequestID(r.Context()), "invalid admin token")
				writeJSONError(w, http.StatusUnauthorized, "invalid admin token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

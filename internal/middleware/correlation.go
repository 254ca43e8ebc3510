// Package middleware provides HTTP middleware functions.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// CorrelationIDHeader carries the id shared by every hop of one conversation turn.
	CorrelationIDHeader = "X-Correlation-ID"
	// RequestIDHeader carries the id of a single request.
	RequestIDHeader = "X-Request-ID"

	maxIDLength = 64
)

type ctxKey int

const (
	correlationIDKey ctxKey = iota
	requestIDKey
)

// RequestCorrelation tags every request with a correlation id, kept when the
// caller (a ManyChat flow or an automation) sends one, and a fresh request id.
type RequestCorrelation struct {
	logger *zap.Logger
}

// NewRequestCorrelation creates a new correlation middleware.
func NewRequestCorrelation(logger *zap.Logger) *RequestCorrelation {
	return &RequestCorrelation{logger: logger}
}

// Middleware returns the HTTP middleware handler.
func (rc *RequestCorrelation) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID, ok := cleanID(r.Header.Get(CorrelationIDHeader))
		if !ok {
			if raw := r.Header.Get(CorrelationIDHeader); raw != "" {
				rc.logger.Debug("discarding malformed correlation id", zap.Int("length", len(raw)))
			}
			correlationID = uuid.NewString()
		}
		requestID, ok := cleanID(r.Header.Get(RequestIDHeader))
		if !ok {
			requestID = uuid.NewString()
		}

		w.Header().Set(CorrelationIDHeader, correlationID)
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), correlationIDKey, correlationID)
		ctx = context.WithValue(ctx, requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// cleanID accepts caller supplied ids made of letters, digits, '-', '_' and '.'
// so they are safe to echo and log.
func cleanID(id string) (string, bool) {
	if id == "" || len(id) > maxIDLength {
		return "", false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return "", false
		}
	}
	return id, true
}

// GetCorrelationID retrieves the correlation ID from context.
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithCorrelationID returns a context carrying id, for work started outside a request.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// LoggerWithCorrelation returns a logger with correlation fields added.
func LoggerWithCorrelation(ctx context.Context, logger *zap.Logger) *zap.Logger {
	fields := make([]zap.Field, 0, 2)
	if id := GetCorrelationID(ctx); id != "" {
		fields = append(fields, zap.String("correlation_id", id))
	}
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// PropagateHeaders copies the correlation id onto an outgoing request.
func PropagateHeaders(ctx context.Context, req *http.Request) {
	if id := GetCorrelationID(ctx); id != "" {
		req.Header.Set(CorrelationIDHeader, id)
	}
}

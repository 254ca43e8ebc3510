// Package audit records security relevant events on the admin surface.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType represents the type of audit event.
type EventType string

// Audit event types.
const (
	// Authorization events
	EventAccessDenied      EventType = "authz.access.denied"
	EventRateLimitExceeded EventType = "authz.ratelimit.exceeded"

	// Data access events
	EventLeadsRead EventType = "data.leads.read"

	// Admin operations
	EventCatalogRefreshed EventType = "admin.catalog.refreshed"
	EventLogLevelChanged  EventType = "admin.log_level.changed"

	// System events
	EventServiceStarted  EventType = "system.started"
	EventServiceStopping EventType = "system.stopping"
)

// Severity represents the severity level of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Event represents an audit log entry.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Severity  Severity  `json:"severity"`

	// ActorType is "admin", "customer" or "system".
	ActorType string `json:"actor_type,omitempty"`

	SourceIP  string `json:"source_ip,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`

	Action  string `json:"action"`
	Outcome string `json:"outcome"` // "success", "failure", "denied"
	Reason  string `json:"reason,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// Logger writes audit events to a named zap logger. A nil *Logger drops them.
type Logger struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewLogger creates a new audit logger.
func NewLogger(baseLogger *zap.Logger) *Logger {
	return &Logger{
		logger: baseLogger.Named("audit"),
		now:    time.Now,
	}
}

// Log records an audit event, filling in ID and timestamp when unset.
func (l *Logger) Log(ctx context.Context, event *Event) {
	if l == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}

	level := zap.InfoLevel
	switch event.Severity {
	case SeverityWarning:
		level = zap.WarnLevel
	case SeverityError, SeverityCritical:
		level = zap.ErrorLevel
	}

	fields := []zap.Field{
		zap.String("audit_id", event.ID),
		zap.Time("audit_timestamp", event.Timestamp),
		zap.String("event_type", string(event.Type)),
		zap.String("severity", string(event.Severity)),
		zap.String("action", event.Action),
		zap.String("outcome", event.Outcome),
	}
	optional := []struct{ key, value string }{
		{"actor_type", event.ActorType},
		{"source_ip", event.SourceIP},
		{"request_id", event.RequestID},
		{"resource_type", event.ResourceType},
		{"resource_id", event.ResourceID},
		{"reason", event.Reason},
	}
	for _, f := range optional {
		if f.value != "" {
			fields = append(fields, zap.String(f.key, f.value))
		}
	}
	if len(event.Metadata) > 0 {
		metadataJSON, err := json.Marshal(event.Metadata)
		if err != nil {
			metadataJSON = []byte(`{"error":"failed to marshal metadata"}`)
		}
		fields = append(fields, zap.ByteString("metadata", metadataJSON))
	}

	if ce := l.logger.Check(level, "security audit event"); ce != nil {
		ce.Write(fields...)
	}
}

// AccessDenied logs a rejected admin request.
func (l *Logger) AccessDenied(ctx context.Context, resource, ip, requestID, reason string) {
	l.Log(ctx, &Event{
		Type:         EventAccessDenied,
		Severity:     SeverityWarning,
		ActorType:    "admin",
		SourceIP:     ip,
		RequestID:    requestID,
		ResourceType: "route",
		ResourceID:   resource,
		Action:       "admin access",
		Outcome:      "denied",
		Reason:       reason,
	})
}

// RateLimitExceeded logs a client that hit the request limit.
func (l *Logger) RateLimitExceeded(ctx context.Context, ip, requestID, path string) {
	l.Log(ctx, &Event{
		Type:         EventRateLimitExceeded,
		Severity:     SeverityWarning,
		ActorType:    "customer",
		SourceIP:     ip,
		RequestID:    requestID,
		ResourceType: "route",
		ResourceID:   path,
		Action:       "request",
		Outcome:      "denied",
		Reason:       "rate limit exceeded",
	})
}

// LeadsRead logs an admin listing captured leads, which hold customer phone numbers.
func (l *Logger) LeadsRead(ctx context.Context, ip, requestID string, count int) {
	l.Log(ctx, &Event{
		Type:         EventLeadsRead,
		Severity:     SeverityInfo,
		ActorType:    "admin",
		SourceIP:     ip,
		RequestID:    requestID,
		ResourceType: "lead",
		Action:       "list leads",
		Outcome:      "success",
		Metadata:     map[string]any{"count": count},
	})
}

// CatalogRefreshed logs a manual catalog refresh.
func (l *Logger) CatalogRefreshed(ctx context.Context, ip, requestID string, size int, err error) {
	event := &Event{
		Type:         EventCatalogRefreshed,
		Severity:     SeverityInfo,
		ActorType:    "admin",
		SourceIP:     ip,
		RequestID:    requestID,
		ResourceType: "catalog",
		Action:       "refresh catalog",
		Outcome:      "success",
		Metadata:     map[string]any{"size": size},
	}
	if err != nil {
		event.Severity = SeverityError
		event.Outcome = "failure"
		event.Reason = err.Error()
	}
	l.Log(ctx, event)
}

// LogLevelChanged logs a runtime log level change.
func (l *Logger) LogLevelChanged(ctx context.Context, ip, requestID, from, to string) {
	l.Log(ctx, &Event{
		Type:         EventLogLevelChanged,
		Severity:     SeverityWarning,
		ActorType:    "admin",
		SourceIP:     ip,
		RequestID:    requestID,
		ResourceType: "setting",
		ResourceID:   "log_level",
		Action:       "change log level",
		Outcome:      "success",
		Metadata:     map[string]any{"from": from, "to": to},
	})
}

// ServiceStarted logs service startup.
func (l *Logger) ServiceStarted(ctx context.Context, version, environment string) {
	l.Log(ctx, &Event{
		Type:      EventServiceStarted,
		Severity:  SeverityInfo,
		ActorType: "system",
		Action:    "service started",
		Outcome:   "success",
		Metadata:  map[string]any{"version": version, "environment": environment},
	})
}

// ServiceStopping logs service shutdown.
func (l *Logger) ServiceStopping(ctx context.Context, reason string) {
	l.Log(ctx, &Event{
		Type:      EventServiceStopping,
		Severity:  SeverityInfo,
		ActorType: "system",
		Action:    "service stopping",
		Outcome:   "success",
		Reason:    reason,
	})
}

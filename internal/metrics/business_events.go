package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/sanitize"
)

// BusinessEventLogger writes structured, searchable log lines for conversation
// outcomes: leads, lookups and searches. It complements the Prometheus counters.
// A nil *BusinessEventLogger discards every event.
type BusinessEventLogger struct {
	logger *zap.Logger
}

// NewBusinessEventLogger creates a new business event logger.
func NewBusinessEventLogger(logger *zap.Logger) *BusinessEventLogger {
	return &BusinessEventLogger{
		logger: logger.Named("business_events"),
	}
}

// LeadCaptured logs a lead created by a seller, visit or advisor flow.
func (l *BusinessEventLogger) LeadCaptured(ctx context.Context, leadID uuid.UUID, kind, sessionID, phone, propertyCode string) {
	if l == nil {
		return
	}
	fields := []zap.Field{
		zap.String("event_type", "lead.captured"),
		zap.String("lead_id", leadID.String()),
		zap.String("kind", kind),
		zap.String("session_id", sessionID),
		zap.Time("timestamp", time.Now().UTC()),
	}
	if phone != "" {
		fields = append(fields, zap.String("phone", sanitize.Phone(phone)))
	}
	if propertyCode != "" {
		fields = append(fields, zap.String("property_code", propertyCode))
	}
	l.logger.Info("lead_captured", fields...)
}

// PropertyLookup logs a lookup by code. outcome is found, unavailable or not_found.
func (l *BusinessEventLogger) PropertyLookup(ctx context.Context, sessionID, code, outcome string) {
	if l == nil {
		return
	}
	l.logger.Info("property_lookup",
		zap.String("event_type", "property.lookup"),
		zap.String("session_id", sessionID),
		zap.String("code", code),
		zap.String("outcome", outcome),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// SearchPerformed logs a filtered catalog search.
func (l *BusinessEventLogger) SearchPerformed(ctx context.Context, sessionID, propertyType string, maxRent int64, minBedrooms, matches int) {
	if l == nil {
		return
	}
	l.logger.Info("search_performed",
		zap.String("event_type", "property.search"),
		zap.String("session_id", sessionID),
		zap.String("type", propertyType),
		zap.Int64("max_rent", maxRent),
		zap.Int("min_bedrooms", minBedrooms),
		zap.Int("matches", matches),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// ConversationReset logs an explicit reset by the user.
func (l *BusinessEventLogger) ConversationReset(ctx context.Context, sessionID string) {
	if l == nil {
		return
	}
	l.logger.Info("conversation_reset",
		zap.String("event_type", "conversation.reset"),
		zap.String("session_id", sessionID),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// NotificationFailed logs a lead that could not be delivered to advisors.
func (l *BusinessEventLogger) NotificationFailed(ctx context.Context, channel string, leadID uuid.UUID, err error) {
	if l == nil {
		return
	}
	l.logger.Warn("notification_failed",
		zap.String("event_type", "lead.notification_failed"),
		zap.String("channel", channel),
		zap.String("lead_id", leadID.String()),
		zap.String("error", sanitize.NewDefault().Error(err)),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

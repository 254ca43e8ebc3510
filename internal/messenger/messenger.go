// Package messenger delivers replies and lead notifications to people outside
// the chat: advisors on ManyChat and generic lead webhooks.
package messenger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/domain"
	apperrors "github.com/jkindrix/bluehome/internal/errors"
	"github.com/jkindrix/bluehome/internal/format"
	"github.com/jkindrix/bluehome/internal/metrics"
	"github.com/jkindrix/bluehome/internal/retry"
)

// Notifier tells the sales team about a new lead.
type Notifier interface {
	Name() string
	NotifyLead(ctx context.Context, lead *domain.Lead) error
}

// Nop discards notifications.
type Nop struct{}

// Name implements Notifier.
func (Nop) Name() string { return "nop" }

// NotifyLead implements Notifier.
func (Nop) NotifyLead(context.Context, *domain.Lead) error { return nil }

// Retrying retries a notifier on transient failures.
type Retrying struct {
	next    Notifier
	backoff *retry.Backoff
}

// WithRetry wraps n with backoff. A nil backoff returns n unchanged.
func WithRetry(n Notifier, b *retry.Backoff) Notifier {
	if b == nil {
		return n
	}
	return &Retrying{next: n, backoff: b}
}

// Name implements Notifier.
func (r *Retrying) Name() string { return r.next.Name() }

// NotifyLead implements Notifier.
func (r *Retrying) NotifyLead(ctx context.Context, lead *domain.Lead) error {
	return r.backoff.Execute(ctx, func(ctx context.Context) error {
		return r.next.NotifyLead(ctx, lead)
	})
}

// Multi fans a notification out to every notifier and records the outcome per channel.
type Multi struct {
	notifiers []Notifier
	metrics   *metrics.Metrics
	events    *metrics.BusinessEventLogger
	logger    *zap.Logger
}

// NewMulti creates a fan-out notifier. Nil entries are skipped.
func NewMulti(m *metrics.Metrics, events *metrics.BusinessEventLogger, logger *zap.Logger, notifiers ...Notifier) *Multi {
	var kept []Notifier
	for _, n := range notifiers {
		if n != nil {
			kept = append(kept, n)
		}
	}
	return &Multi{
		notifiers: kept,
		metrics:   m,
		events:    events,
		logger:    logger.Named("messenger"),
	}
}

// Name implements Notifier.
func (m *Multi) Name() string { return "multi" }

// Len returns the number of configured channels.
func (m *Multi) Len() int { return len(m.notifiers) }

// NotifyLead delivers to every channel. One failing channel does not stop the others.
func (m *Multi) NotifyLead(ctx context.Context, lead *domain.Lead) error {
	var errs []error
	for _, n := range m.notifiers {
		err := n.NotifyLead(ctx, lead)
		m.metrics.RecordNotification(n.Name(), err)
		if err != nil {
			m.events.NotificationFailed(ctx, n.Name(), lead.ID, err)
			errs = append(errs, apperrors.DeliveryFailed(n.Name(), err))
			continue
		}
		m.logger.Debug("lead delivered", zap.String("channel", n.Name()), zap.String("lead_id", lead.ID.String()))
	}
	return errors.Join(errs...)
}

var leadTitles = map[domain.LeadKind]string{
	domain.LeadKindConsignment: "🏡 Nuevo inmueble para consignar",
	domain.LeadKindVisit:       "📅 Solicitud de visita",
	domain.LeadKindAdvisor:     "🙋 Cliente solicita asesor",
}

// LeadSummary renders a lead for an advisor.
func LeadSummary(lead *domain.Lead) string {
	title, ok := leadTitles[lead.Kind]
	if !ok {
		title = "Nuevo lead: " + string(lead.Kind)
	}

	lines := []string{title}
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", label, value))
		}
	}
	add("Nombre", lead.Name)
	add("Teléfono", lead.Phone)
	add("Dirección", lead.Address)
	add("Tipo", string(lead.PropertyType))
	if lead.AskingPrice > 0 {
		add("Precio", format.COP(lead.AskingPrice))
	}
	add("Código", lead.PropertyCode)
	add("Notas", lead.Notes)
	add("Contacto", lead.SessionID)
	return strings.Join(lines, "\n")
}

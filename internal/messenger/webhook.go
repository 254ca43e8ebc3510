package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/domain"
	"github.com/jkindrix/bluehome/internal/middleware"
	"github.com/jkindrix/bluehome/internal/retry"
)

// WebhookNotifier posts leads as JSON to an automation hook (Zapier, Make, n8n).
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWebhookNotifier creates a notifier for url.
func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("lead_webhook"),
	}
}

type leadWebhookBody struct {
	*domain.Lead
	Summary string `json:"summary"`
}

// Name implements Notifier.
func (w *WebhookNotifier) Name() string { return "webhook" }

// NotifyLead implements Notifier.
func (w *WebhookNotifier) NotifyLead(ctx context.Context, lead *domain.Lead) error {
	body, err := json.Marshal(leadWebhookBody{Lead: lead, Summary: LeadSummary(lead)})
	if err != nil {
		return fmt.Errorf("failed to marshal lead: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	middleware.PropagateHeaders(ctx, req)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lead webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return retry.FromResponse(resp, fmt.Errorf("lead webhook error (status %d): %s", resp.StatusCode, truncate(string(respBody), maxErrorBody)))
	}
	return nil
}

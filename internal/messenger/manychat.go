package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/domain"
	"github.com/jkindrix/bluehome/internal/middleware"
	"github.com/jkindrix/bluehome/internal/retry"
)

const (
	// DefaultManyChatURL is the ManyChat public API.
	DefaultManyChatURL = "https://api.manychat.com"

	sendContentPath = "/fb/sending/sendContent"
	maxErrorBody    = 300
)

// ManyChatConfig configures the ManyChat client.
type ManyChatConfig struct {
	APIURL              string
	APIToken            string
	AdvisorSubscriberID string
	Timeout             time.Duration
}

// ManyChatClient sends text through the ManyChat Send API.
type ManyChatClient struct {
	apiURL     string
	token      string
	advisorID  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewManyChatClient creates a client.
func NewManyChatClient(cfg ManyChatConfig, logger *zap.Logger) *ManyChatClient {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultManyChatURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &ManyChatClient{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		token:      cfg.APIToken,
		advisorID:  cfg.AdvisorSubscriberID,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("manychat"),
	}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type sendContentRequest struct {
	SubscriberID string `json:"subscriber_id"`
	Data         struct {
		Version string `json:"version"`
		Content struct {
			Messages []textMessage `json:"messages"`
		} `json:"content"`
	} `json:"data"`
}

type sendContentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Name implements Notifier.
func (c *ManyChatClient) Name() string { return "manychat" }

// SendText sends messages to a subscriber. Empty messages are dropped.
func (c *ManyChatClient) SendText(ctx context.Context, subscriberID string, messages []string) error {
	if subscriberID == "" {
		return errors.New("manychat: subscriber id is required")
	}

	var req sendContentRequest
	req.SubscriberID = subscriberID
	req.Data.Version = "v2"
	for _, m := range messages {
		if strings.TrimSpace(m) != "" {
			req.Data.Content.Messages = append(req.Data.Content.Messages, textMessage{Type: "text", Text: m})
		}
	}
	if len(req.Data.Content.Messages) == 0 {
		return nil
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+sendContentPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")
	middleware.PropagateHeaders(ctx, httpReq)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("manychat request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return retry.FromResponse(resp, fmt.Errorf("manychat API error (status %d): %s", resp.StatusCode, truncate(string(respBody), maxErrorBody)))
	}

	var parsed sendContentResponse
	if json.Unmarshal(respBody, &parsed) == nil && parsed.Status == "error" {
		return fmt.Errorf("manychat API error: %s", truncate(parsed.Message, maxErrorBody))
	}

	c.logger.Debug("manychat content sent",
		zap.Int("messages", len(req.Data.Content.Messages)),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}

// NotifyLead sends the lead summary to the advisor subscriber.
func (c *ManyChatClient) NotifyLead(ctx context.Context, lead *domain.Lead) error {
	return c.SendText(ctx, c.advisorID, []string{LeadSummary(lead)})
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

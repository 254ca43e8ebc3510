// Package llm answers free-text questions the conversation router cannot
// handle with a chat-completion model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/circuitbreaker"
	"github.com/jkindrix/bluehome/internal/config"
	"github.com/jkindrix/bluehome/internal/domain"
	apperrors "github.com/jkindrix/bluehome/internal/errors"
	"github.com/jkindrix/bluehome/internal/metrics"
)

// ErrDisabled is returned by the Disabled completer.
var ErrDisabled = errors.New("llm disabled")

// Completer produces an assistant reply for userText given prior turns.
type Completer interface {
	Complete(ctx context.Context, history []domain.ChatMessage, userText string) (string, error)
}

// Disabled is used when no model is configured.
type Disabled struct{}

// Complete always returns ErrDisabled.
func (Disabled) Complete(context.Context, []domain.ChatMessage, string) (string, error) {
	return "", ErrDisabled
}

// chatAPI is the subset of *openai.Client used here.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	api            chatAPI
	model          string
	maxTokens      int
	temperature    float32
	systemPrompt   string
	historyLimit   int
	timeout        time.Duration
	circuitBreaker *circuitbreaker.CircuitBreaker
	metrics        *metrics.Metrics
	logger         *zap.Logger
}

// NewOpenAIClient creates a client from config.
func NewOpenAIClient(cfg config.LLMConfig, m *metrics.Metrics, logger *zap.Logger) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout + 5*time.Second}

	return newOpenAIClient(openai.NewClientWithConfig(clientCfg), cfg, m, logger)
}

func newOpenAIClient(api chatAPI, cfg config.LLMConfig, m *metrics.Metrics, logger *zap.Logger) *OpenAIClient {
	cbConfig := &circuitbreaker.Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 1,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			m.SetCircuitBreakerState(name, int(to))
		},
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = config.DefaultSystemPrompt
	}

	return &OpenAIClient{
		api:            api,
		model:          cfg.Model,
		maxTokens:      cfg.MaxTokens,
		temperature:    cfg.Temperature,
		systemPrompt:   prompt,
		historyLimit:   cfg.HistoryLimit,
		timeout:        timeout,
		circuitBreaker: circuitbreaker.New("llm", cbConfig, logger),
		metrics:        m,
		logger:         logger.Named("llm"),
	}
}

// Complete sends the system prompt, the most recent history and userText.
func (c *OpenAIClient) Complete(ctx context.Context, history []domain.ChatMessage, userText string) (string, error) {
	start := time.Now()
	var reply string

	err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		var execErr error
		reply, execErr = c.doComplete(callCtx, history, userText)
		return execErr
	})

	c.metrics.RecordLLMCall(outcomeFor(err), time.Since(start))
	if err != nil {
		c.logger.Warn("completion failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return "", apperrors.LLMUnavailable(err)
	}
	return reply, nil
}

func (c *OpenAIClient) doComplete(ctx context.Context, history []domain.ChatMessage, userText string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    c.buildMessages(history, userText),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty completion")
	}

	c.logger.Debug("completion generated",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return text, nil
}

func (c *OpenAIClient) buildMessages(history []domain.ChatMessage, userText string) []openai.ChatCompletionMessage {
	history = trimHistory(history, c.historyLimit)

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt})
	for _, h := range history {
		role := openai.ChatMessageRoleUser
		if h.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: h.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: strings.TrimSpace(userText)})
	return msgs
}

// trimHistory keeps the last limit turns. limit <= 0 keeps none.
func trimHistory(history []domain.ChatMessage, limit int) []domain.ChatMessage {
	if limit <= 0 {
		return nil
	}
	if len(history) > limit {
		return history[len(history)-limit:]
	}
	return history
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return metrics.OutcomeCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeFailure
	}
}

// CircuitBreakerStats returns the current circuit breaker statistics.
func (c *OpenAIClient) CircuitBreakerStats() circuitbreaker.Stats {
	return c.circuitBreaker.Stats()
}

// IsCircuitOpen returns true if the circuit breaker is open.
func (c *OpenAIClient) IsCircuitOpen() bool {
	return c.circuitBreaker.IsOpen()
}

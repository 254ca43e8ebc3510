package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/config"
	"github.com/jkindrix/bluehome/internal/domain"
	apperrors "github.com/jkindrix/bluehome/internal/errors"
	"github.com/jkindrix/bluehome/internal/metrics"
)

type mockChatAPI struct {
	lastRequest openai.ChatCompletionRequest
	response    openai.ChatCompletionResponse
	err         error
	calls       int
}

func (m *mockChatAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.calls++
	m.lastRequest = req
	return m.response, m.err
}

func replyWith(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text}},
		},
	}
}

func testConfig() config.LLMConfig {
	return config.LLMConfig{
		Model:        "gpt-4o-mini",
		MaxTokens:    100,
		Temperature:  0.4,
		SystemPrompt: "Eres un asesor.",
		HistoryLimit: 2,
		Timeout:      time.Second,
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	api := &mockChatAPI{response: replyWith("  Claro, te ayudo.  ")}
	client := newOpenAIClient(api, testConfig(), nil, zap.NewNop())

	history := []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "hola"},
		{Role: domain.RoleAssistant, Content: "¡Hola!"},
		{Role: domain.RoleUser, Content: "busco casa"},
	}

	reply, err := client.Complete(context.Background(), history, " ¿tienen parqueadero? ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Claro, te ayudo." {
		t.Errorf("expected trimmed reply, got %q", reply)
	}

	msgs := api.lastRequest.Messages
	if len(msgs) != 4 {
		t.Fatalf("expected system + 2 history + user = 4 messages, got %d", len(msgs))
	}
	if msgs[0].Role != openai.ChatMessageRoleSystem || msgs[0].Content != "Eres un asesor." {
		t.Errorf("expected system prompt first, got %+v", msgs[0])
	}
	if msgs[1].Content != "¡Hola!" || msgs[1].Role != openai.ChatMessageRoleAssistant {
		t.Errorf("expected oldest kept turn to be the assistant greeting, got %+v", msgs[1])
	}
	if msgs[3].Content != "¿tienen parqueadero?" {
		t.Errorf("expected trimmed user text last, got %q", msgs[3].Content)
	}
	if api.lastRequest.Model != "gpt-4o-mini" || api.lastRequest.MaxTokens != 100 {
		t.Errorf("unexpected request settings: %+v", api.lastRequest)
	}
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name string
		api  *mockChatAPI
	}{
		{"api error", &mockChatAPI{err: errors.New("rate limited")}},
		{"no choices", &mockChatAPI{}},
		{"blank content", &mockChatAPI{response: replyWith("   ")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newOpenAIClient(tt.api, testConfig(), nil, zap.NewNop())
			_, err := client.Complete(context.Background(), nil, "hola")
			if err == nil {
				t.Fatal("expected error")
			}
			if apperrors.GetCode(err) != apperrors.CodeLLMUnavailable {
				t.Errorf("expected LLM_UNAVAILABLE, got %s", apperrors.GetCode(err))
			}
		})
	}
}

func TestOpenAIClient_CircuitOpens(t *testing.T) {
	api := &mockChatAPI{err: errors.New("upstream down")}
	m := metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	client := newOpenAIClient(api, testConfig(), m, zap.NewNop())

	for i := 0; i < 5; i++ {
		client.Complete(context.Background(), nil, "hola")
	}
	if !client.IsCircuitOpen() {
		t.Fatal("expected circuit to open after consecutive failures")
	}

	client.Complete(context.Background(), nil, "hola")
	if api.calls != 5 {
		t.Errorf("expected open circuit to skip the api, got %d calls", api.calls)
	}
	if got := testutil.ToFloat64(m.LLMCallsTotal.WithLabelValues(metrics.OutcomeCircuitOpen)); got != 1 {
		t.Errorf("expected 1 circuit_open outcome, got %f", got)
	}
	if got := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("llm")); got != 2 {
		t.Errorf("expected open state gauge 2, got %f", got)
	}
}

func TestNewOpenAIClient_HTTP(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(replyWith("Hola desde el servidor"))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.APIKey = "sk-test"
	cfg.BaseURL = server.URL + "/v1/"
	client := NewOpenAIClient(cfg, nil, zap.NewNop())

	reply, err := client.Complete(context.Background(), nil, "hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Hola desde el servidor" {
		t.Errorf("unexpected reply %q", reply)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
}

func TestDisabled(t *testing.T) {
	var c Completer = Disabled{}
	if _, err := c.Complete(context.Background(), nil, "hola"); !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}

func TestTrimHistory(t *testing.T) {
	h := []domain.ChatMessage{{Content: "a"}, {Content: "b"}, {Content: "c"}}
	if got := trimHistory(h, 0); got != nil {
		t.Errorf("expected nil for zero limit, got %v", got)
	}
	if got := trimHistory(h, 5); len(got) != 3 {
		t.Errorf("expected all 3, got %d", len(got))
	}
	if got := trimHistory(h, 1); len(got) != 1 || got[0].Content != "c" {
		t.Errorf("expected last turn, got %v", got)
	}
}

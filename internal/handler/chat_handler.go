package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/conversation"
	"github.com/jkindrix/bluehome/internal/domain"
	"github.com/jkindrix/bluehome/internal/messenger"
	"github.com/jkindrix/bluehome/internal/middleware"
	"github.com/jkindrix/bluehome/internal/sanitize"
	"github.com/jkindrix/bluehome/internal/webhook"
)

// defaultChatTimeout bounds one conversation turn, LLM call included.
const defaultChatTimeout = 30 * time.Second

// msgSlowDown answers a contact that went over its message allowance.
const msgSlowDown = "Estás enviando muchos mensajes. Espera un momento y vuelve a escribirme."

// ContactLimiter meters messages per contact.
type ContactLimiter interface {
	Allow(r *http.Request, key string) bool
	RetryAfter() int
}

// Responder answers one inbound chat message.
type Responder interface {
	Handle(ctx context.Context, in conversation.Inbound) (*domain.Reply, error)
}

// ChatHandler exposes the conversation engine to ManyChat and to the legacy chat flows.
type ChatHandler struct {
	engine    Responder
	limiter   ContactLimiter
	sanitizer *sanitize.Sanitizer
	timeout   time.Duration
	logger    *zap.Logger
}

// ChatHandlerConfig holds configuration for ChatHandler.
type ChatHandlerConfig struct {
	Engine Responder
	// Limiter is optional. Messages are metered by session id.
	Limiter ContactLimiter
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewChatHandler creates a new ChatHandler with all required dependencies.
func NewChatHandler(cfg ChatHandlerConfig) *ChatHandler {
	if cfg.Logger == nil {
		panic("logger is required")
	}
	if cfg.Engine == nil {
		panic("engine is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultChatTimeout
	}
	return &ChatHandler{
		engine:    cfg.Engine,
		limiter:   cfg.Limiter,
		sanitizer: sanitize.NewDefault(),
		timeout:   timeout,
		logger:    cfg.Logger,
	}
}

// RegisterRoutes registers chat routes on the router.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/manychat/webhook", h.HandleManyChat)
	r.Post("/api/chat", h.HandleLegacyChat)
}

// LegacyChatResponse is the body of /api/chat. Existing flows map only respuesta.
type LegacyChatResponse struct {
	Respuesta string `json:"respuesta"`
}

// HandleManyChat handles POST /manychat/webhook and answers the full envelope.
func (h *ChatHandler) HandleManyChat(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerWithCorrelation(r.Context(), h.logger)

	var payload webhook.ManyChatPayload
	if err := decodeJSON(r, &payload); err != nil {
		logger.Warn("invalid manychat payload", zap.Error(err))
		writeError(w, r, http.StatusBadRequest, "invalid JSON body", h.logger)
		return
	}
	if !h.allow(r, payload) {
		w.Header().Set("Retry-After", strconv.Itoa(h.limiter.RetryAfter()))
		writeError(w, r, http.StatusTooManyRequests, "too many messages", h.logger)
		return
	}

	reply, err := h.handle(r.Context(), logger, payload)
	if err != nil {
		logger.Error("failed to handle manychat message", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, err.Error(), h.logger)
		return
	}
	writeJSON(w, r, http.StatusOK, messenger.NormalizeResponse(reply), h.logger)
}

// HandleLegacyChat handles POST /api/chat. It always answers 200 so that
// old flows never show an error block to the customer.
func (h *ChatHandler) HandleLegacyChat(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerWithCorrelation(r.Context(), h.logger)

	var body webhook.ChatPayload
	if err := decodeJSON(r, &body); err != nil {
		logger.Warn("invalid chat payload", zap.Error(err))
		writeJSON(w, r, http.StatusOK, LegacyChatResponse{}, h.logger)
		return
	}
	payload := body.ToManyChat()
	if !h.allow(r, payload) {
		writeJSON(w, r, http.StatusOK, LegacyChatResponse{Respuesta: msgSlowDown}, h.logger)
		return
	}

	reply, err := h.handle(r.Context(), logger, payload)
	if err != nil {
		logger.Error("failed to handle chat message", zap.Error(err))
		writeJSON(w, r, http.StatusOK, LegacyChatResponse{}, h.logger)
		return
	}
	env := messenger.NormalizeResponse(reply)
	writeJSON(w, r, http.StatusOK, LegacyChatResponse{Respuesta: env.Respuesta}, h.logger)
}

func (h *ChatHandler) allow(r *http.Request, payload webhook.ManyChatPayload) bool {
	if h.limiter == nil {
		return true
	}
	return h.limiter.Allow(r, conversation.ResolveSessionID(payload.ContactID.String(), payload.UserName))
}

func (h *ChatHandler) handle(ctx context.Context, logger *zap.Logger, payload webhook.ManyChatPayload) (*domain.Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	in := conversation.Inbound{
		SessionID: payload.ContactID.String(),
		UserName:  payload.UserName,
		Text:      payload.Text,
	}
	logger.Debug("inbound chat message",
		zap.String("contact_id", in.SessionID),
		zap.String("text", h.sanitizer.String(in.Text)),
	)
	return h.engine.Handle(ctx, in)
}

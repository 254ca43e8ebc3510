package messenger

import (
	"strings"

	"github.com/jkindrix/bluehome/internal/domain"
)

// maxJoinedMessages is how many messages are flattened into Respuesta.
const maxJoinedMessages = 3

// Message is a ManyChat dynamic block message.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// EnvelopeContext lets the flow keep the session id between requests.
type EnvelopeContext struct {
	SessionID string `json:"session_id"`
	Reset     bool   `json:"reset,omitempty"`
}

// Envelope is the webhook response body. Respuesta is a flat copy of the
// first messages for flows that map a single JSONPath.
type Envelope struct {
	Messages     []Message       `json:"messages"`
	QuickReplies []string        `json:"quick_replies,omitempty"`
	Context      EnvelopeContext `json:"context"`
	Respuesta    string          `json:"respuesta"`
}

// NormalizeResponse builds the envelope for a reply.
func NormalizeResponse(reply *domain.Reply) Envelope {
	if reply == nil {
		return Envelope{Messages: []Message{}}
	}

	env := Envelope{
		Messages:     make([]Message, 0, len(reply.Messages)),
		QuickReplies: reply.QuickReplies,
		Context:      EnvelopeContext{SessionID: reply.SessionID, Reset: reply.Reset},
	}

	var texts []string
	for _, text := range reply.Messages {
		if text == "" {
			continue
		}
		env.Messages = append(env.Messages, Message{Type: "text", Text: text})
		texts = append(texts, text)
	}
	if len(texts) > maxJoinedMessages {
		texts = texts[:maxJoinedMessages]
	}
	env.Respuesta = strings.Join(texts, "\n\n")
	return env
}

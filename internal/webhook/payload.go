// Package webhook decodes inbound chat payloads from ManyChat and from the
// older flows that post to the legacy chat endpoint.
package webhook

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexString accepts a JSON string or number. ManyChat sends contact ids
// as numbers in some flows and as strings in others.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the trimmed value.
func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

// ManyChatPayload is the External Request body configured in ManyChat.
type ManyChatPayload struct {
	ContactID FlexString `json:"contact_id"`
	UserName  string     `json:"user_name"`
	Text      string     `json:"text"`
}

// ChatPayload is the legacy body. Flows built over time send the same data
// under different names, so every known spelling is accepted.
type ChatPayload struct {
	Text      string          `json:"text"`
	Pregunta  string          `json:"pregunta"`
	Message   string          `json:"message"`
	Input     json.RawMessage `json:"input"`
	Content   string          `json:"content"`
	LastInput string          `json:"last_input"`

	ContactID        FlexString `json:"contact_id"`
	Contact          FlexString `json:"contact"`
	UserID           FlexString `json:"user_id"`
	SessionID        FlexString `json:"session_id"`
	ContactIDCompact FlexString `json:"contactId"`
	UserIDCompact    FlexString `json:"userId"`

	UserName string `json:"user_name"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
}

// GetText returns the first non-empty text field, in order: text, pregunta,
// message, input.text, input, content, last_input.
func (p *ChatPayload) GetText() string {
	return firstNonEmpty(p.Text, p.Pregunta, p.Message, p.inputText(), p.Content, p.LastInput)
}

// GetContactID returns the first non-empty id field, or "".
func (p *ChatPayload) GetContactID() string {
	return firstNonEmpty(
		p.ContactID.String(),
		p.Contact.String(),
		p.UserID.String(),
		p.SessionID.String(),
		p.ContactIDCompact.String(),
		p.UserIDCompact.String(),
	)
}

// GetUserName returns the first non-empty name field.
func (p *ChatPayload) GetUserName() string {
	return firstNonEmpty(p.UserName, p.Name, p.FullName, p.Username)
}

// ToManyChat maps the legacy body onto the canonical payload.
func (p *ChatPayload) ToManyChat() ManyChatPayload {
	return ManyChatPayload{
		ContactID: FlexString(p.GetContactID()),
		UserName:  p.GetUserName(),
		Text:      p.GetText(),
	}
}

// inputText reads input as {"text": "..."} or as a plain string.
func (p *ChatPayload) inputText() string {
	if len(p.Input) == 0 {
		return ""
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(p.Input, &obj); err == nil {
		return obj.Text
	}
	var s string
	if err := json.Unmarshal(p.Input, &s); err == nil {
		return s
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

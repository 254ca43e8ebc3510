package webhook

import (
	"encoding/json"
	"testing"
)

func TestFlexString_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"string", `{"contact_id":"abc-1"}`, "abc-1"},
		{"number", `{"contact_id":123456789012}`, "123456789012"},
		{"null", `{"contact_id":null}`, ""},
		{"missing", `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p ManyChatPayload
			if err := json.Unmarshal([]byte(tt.input), &p); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := p.ContactID.String(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestFlexString_Invalid(t *testing.T) {
	var p ManyChatPayload
	if err := json.Unmarshal([]byte(`{"contact_id":{"a":1}}`), &p); err == nil {
		t.Error("expected error for object contact_id")
	}
}

func TestChatPayload_GetText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"text wins", `{"text":"hola","pregunta":"otra"}`, "hola"},
		{"pregunta", `{"pregunta":"codigo 12"}`, "codigo 12"},
		{"message", `{"message":"menu"}`, "menu"},
		{"input object", `{"input":{"text":"buscar"}}`, "buscar"},
		{"input string", `{"input":"asesor"}`, "asesor"},
		{"content", `{"content":"horario"}`, "horario"},
		{"last_input", `{"last_input":"reset"}`, "reset"},
		{"blank skipped", `{"text":"  ","message":"hola"}`, "hola"},
		{"none", `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p ChatPayload
			if err := json.Unmarshal([]byte(tt.input), &p); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := p.GetText(); got != tt.expected {
				t.Errorf("GetText() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestChatPayload_GetContactID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"contact_id", `{"contact_id":"c1","user_id":"u1"}`, "c1"},
		{"contact", `{"contact":42}`, "42"},
		{"user_id", `{"user_id":"u1"}`, "u1"},
		{"session_id", `{"session_id":"s1"}`, "s1"},
		{"contactId", `{"contactId":"c2"}`, "c2"},
		{"userId", `{"userId":"u2"}`, "u2"},
		{"none", `{"text":"hola"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p ChatPayload
			if err := json.Unmarshal([]byte(tt.input), &p); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := p.GetContactID(); got != tt.expected {
				t.Errorf("GetContactID() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestChatPayload_ToManyChat(t *testing.T) {
	var p ChatPayload
	body := `{"userId":"u9","full_name":"Ana Gómez","pregunta":"tengo código"}`
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	mc := p.ToManyChat()
	if mc.ContactID.String() != "u9" || mc.UserName != "Ana Gómez" || mc.Text != "tengo código" {
		t.Errorf("unexpected mapping: %+v", mc)
	}
}

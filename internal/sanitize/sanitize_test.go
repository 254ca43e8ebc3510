package sanitize

import (
	"errors"
	"testing"
)

func TestSanitizer_String_Phone(t *testing.T) {
	s := NewDefault()

	tests := []struct {
		input    string
		expected string
	}{
		{"mi numero es 3001234567", "mi numero es 300*****67"},
		{"llamame al +57 300 123 4567", "llamame al +57***********67"},
		{"apto 3 habitaciones", "apto 3 habitaciones"},
		{"codigo 1234", "codigo 1234"},
		{"presupuesto 2.500.000", "presupuesto 2.500.000"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := s.String(tt.input); got != tt.expected {
				t.Errorf("String(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizer_String_Email(t *testing.T) {
	s := NewDefault()

	tests := []struct {
		input    string
		expected string
	}{
		{"escribeme a laura@example.com", "escribeme a la***@example.com"},
		{"correo: ab@test.co", "correo: a***@test.co"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := s.String(tt.input); got != tt.expected {
				t.Errorf("String(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizer_String_Secrets(t *testing.T) {
	s := NewDefault()

	tests := []struct {
		input    string
		expected string
	}{
		{"Authorization: Bearer abc.def-123", "Authorization: Bearer [REDACTED]"},
		{"token=sk_live_abcdefghijkl", "token=[REDACTED]"},
		{"api_key: 'abcdefghijklmnop'", "api_key: '[REDACTED]'"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := s.String(tt.input); got != tt.expected {
				t.Errorf("String(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNew_DisabledMasks(t *testing.T) {
	s := New(Config{})
	input := "3001234567 laura@example.com"
	if got := s.String(input); got != input {
		t.Errorf("expected no masking, got %q", got)
	}
}

func TestSanitizer_Error(t *testing.T) {
	s := NewDefault()

	if got := s.Error(nil); got != "" {
		t.Errorf("Error(nil) = %q, want empty", got)
	}
	err := errors.New("delivery to 3001234567 failed")
	if got := s.Error(err); got != "delivery to 300*****67 failed" {
		t.Errorf("Error() = %q", got)
	}
}

func TestSecret(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"short", "[REDACTED]"},
		{"sk-1234567890abcd", "sk-1...abcd"},
	}
	for _, tt := range tests {
		if got := Secret(tt.input); got != tt.expected {
			t.Errorf("Secret(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestPhone_Short(t *testing.T) {
	if got := Phone("123"); got != "****" {
		t.Errorf("Phone(123) = %q, want ****", got)
	}
}

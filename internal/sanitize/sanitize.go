// Package sanitize masks contact data and credentials before they reach the logs.
// Chat turns carry phone numbers and emails typed by customers, and the
// outbound clients carry API tokens; neither should be written in clear.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	// 7 to 13 digits, optionally separated by single spaces or hyphens
	// ("3001234567", "+57 300 123 4567", "604-444-1234").
	phonePattern = regexp.MustCompile(`\+?\d(?:[\s-]?\d){6,12}`)

	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	secretPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret|token|password)([=:\s"']+)([\w.-]{12,})`)

	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[\w.-]+`)
)

// Config selects which kinds of data are masked.
type Config struct {
	MaskPhones  bool
	MaskEmails  bool
	MaskSecrets bool
}

// DefaultConfig enables every mask.
func DefaultConfig() Config {
	return Config{MaskPhones: true, MaskEmails: true, MaskSecrets: true}
}

type rule struct {
	pattern *regexp.Regexp
	replace func(string) string
}

// Sanitizer applies the enabled masks to free text.
type Sanitizer struct {
	rules []rule
}

// New creates a Sanitizer. Secrets are masked before phones so that long
// numeric tokens keep their key name.
func New(cfg Config) *Sanitizer {
	s := &Sanitizer{}
	if cfg.MaskSecrets {
		s.rules = append(s.rules,
			rule{pattern: bearerPattern, replace: func(string) string { return "Bearer [REDACTED]" }},
			rule{pattern: secretPattern, replace: maskSecret},
		)
	}
	if cfg.MaskEmails {
		s.rules = append(s.rules, rule{pattern: emailPattern, replace: Email})
	}
	if cfg.MaskPhones {
		s.rules = append(s.rules, rule{pattern: phonePattern, replace: Phone})
	}
	return s
}

// NewDefault creates a Sanitizer with every mask enabled.
func NewDefault() *Sanitizer {
	return New(DefaultConfig())
}

// String masks sensitive data in input.
func (s *Sanitizer) String(input string) string {
	out := input
	for _, r := range s.rules {
		out = r.pattern.ReplaceAllStringFunc(out, r.replace)
	}
	return out
}

// Error masks sensitive data in an error message.
func (s *Sanitizer) Error(err error) string {
	if err == nil {
		return ""
	}
	return s.String(err.Error())
}

// Phone keeps the first three and last two characters of a phone number.
func Phone(phone string) string {
	if len(phone) <= 5 {
		return "****"
	}
	return phone[:3] + strings.Repeat("*", len(phone)-5) + phone[len(phone)-2:]
}

// Email keeps the first two characters of the local part and the domain.
func Email(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "[email]"
	}
	if at <= 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}

// Secret shortens a credential to its first and last four characters.
func Secret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "[REDACTED]"
	}
	return value[:4] + "..." + value[len(value)-4:]
}

func maskSecret(match string) string {
	parts := secretPattern.FindStringSubmatch(match)
	if len(parts) != 4 {
		return "[REDACTED]"
	}
	return parts[1] + parts[2] + "[REDACTED]"
}

package conversation

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/jkindrix/bluehome/internal/domain"
)

// Intent names, used as metric labels and in Reply.Intent.
const (
	IntentReset         = "reset"
	IntentPropertyCode  = "property_code"
	IntentRequestCode   = "request_code"
	IntentSearchFilters = "search_filters"
	IntentMoreOptions   = "more_options"
	IntentWidenBudget   = "widen_budget"
	IntentChangeType    = "change_type"
	IntentScheduleVisit = "schedule_visit"
	IntentSeller        = "seller"
	IntentFeeSimulation = "fee_simulation"
	IntentAdvisor       = "advisor"
	IntentCompanyInfo   = "company_info"
	IntentMenu          = "menu"
	IntentLLMFallback   = "llm_fallback"
	IntentFallback      = "fallback"
)

// Turn is one inbound message being routed.
type Turn struct {
	Session *domain.Session
	Text    string
	// Folded is Text lower-cased with accents removed. Patterns match against it.
	Folded string
	// Keyword is the keyword route the message matches, if any.
	Keyword *Route
}

// HandlerFunc answers a turn.
type HandlerFunc func(ctx context.Context, t *Turn) *domain.Reply

// Route binds a pattern to a handler. Name is the config override key.
type Route struct {
	Name   string
	Intent string
	Match  *regexp.Regexp
	Handle HandlerFunc
}

// DefaultPatterns are the built-in route patterns, written against folded text.
// Each can be replaced through the intents config map.
var DefaultPatterns = map[string]string{
	"reset":           `\btest\b|\breiniciar\b|\breset\b`,
	"property_code":   `\b(?:codigo|cod|ref)\b\.?\s*[:#-]?\s*(\d{1,4})\b`,
	"request_code":    `tengo (?:un )?codigo|\bcodigo\b`,
	"seller":          `consignar|vender mi|publicar mi inmueble|soy (?:el )?(?:propietario|dueno)`,
	"search_filters":  `buscar por filtros|\bfiltros?\b|\barrendar\b|\bbuscar\b|\bbusco\b`,
	"more_options":    `\bver mas\b|\bmas opciones\b`,
	"widen_budget":    `ampliar (?:el )?presupuesto`,
	"change_type":     `cambiar (?:de )?(?:tipo|zona)`,
	"schedule_visit":  `agendar|\bvisitar?\b`,
	"fee_simulation":  `\bsimular\b|\bsimulacion\b|\bcomision\b|cuanto me cobran`,
	"advisor":         `\basesor(?:a|es)?\b|\bhumano\b|\bpersona\b`,
	"company_hours":   `\bhorarios?\b|hora de atencion|a que hora`,
	"company_address": `\bdireccion\b|\bubicacion\b|\boficinas?\b|donde (?:estan|quedan)`,
	"company_phone":   `\btelefono\b|\bcontacto\b|\bwhatsapp\b`,
	"company_about":   `quienes son|sobre ustedes|\bempresa\b`,
	"company_website": `\bpagina\b|\bweb\b|sitio`,
	"menu":            `\bmenu\b|\bhola\b|\binicio\b|\bopciones\b|\bbuenas\b|buenos dias`,
}

// bareCode matches a message that is only a 1 to 4 digit code.
var bareCode = regexp.MustCompile(`^#?\s*(\d{1,4})$`)

// compilePatterns merges overrides into DefaultPatterns. Overrides for
// unknown names are reported so a typo in config does not pass silently.
func compilePatterns(overrides map[string]string) (map[string]*regexp.Regexp, []string, error) {
	merged := make(map[string]string, len(DefaultPatterns))
	for name, p := range DefaultPatterns {
		merged[name] = p
	}

	var unknown []string
	for name, p := range overrides {
		if _, ok := DefaultPatterns[name]; !ok {
			unknown = append(unknown, name)
			continue
		}
		if p != "" {
			merged[name] = p
		}
	}
	sort.Strings(unknown)

	compiled := make(map[string]*regexp.Regexp, len(merged))
	for name, p := range merged {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, nil, fmt.Errorf("intent %q: %w", name, err)
		}
		if name == IntentPropertyCode && re.NumSubexp() == 0 {
			return nil, nil, fmt.Errorf("intent %q: pattern needs a capture group for the code", name)
		}
		compiled[name] = re
	}
	return compiled, unknown, nil
}

// match returns the first route whose pattern matches folded text.
func match(routes []Route, folded string) *Route {
	for i := range routes {
		if routes[i].Match.MatchString(folded) {
			return &routes[i]
		}
	}
	return nil
}

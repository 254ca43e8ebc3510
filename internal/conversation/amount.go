package conversation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jkindrix/bluehome/internal/catalog"
	"github.com/jkindrix/bluehome/internal/domain"
)

// minBudget is the smallest amount taken as a budget from a message that was
// not a direct answer to the budget question.
const minBudget = 1000

const maxRooms = 20

// MaxAmount is the largest peso amount ParseAmount reports. Larger figures
// are treated as no amount.
const MaxAmount int64 = 1_000_000_000_000

var (
	amountToken   = regexp.MustCompile(`(\d[\d.,]*)\s*(millones|millon|mill|mil|mm|m|k)?`)
	areaToken     = regexp.MustCompile(`\d[\d.,]*\s*(?:m2|m²|mt2|mts2?|mtrs?|metros?(?:\s+cuadrados)?)(?:[^a-z0-9]|$)`)
	roomsExplicit = regexp.MustCompile(`(\d{1,2})\s*(?:hab|alcoba|cuarto|dormitorio|recamara)`)
	smallNumber   = regexp.MustCompile(`\b(\d{1,2})\b`)
	phoneToken    = regexp.MustCompile(`\+?\d[\d\s().-]{5,18}\d`)
	contactFiller = regexp.MustCompile(`(?i)\b(mi (nombre|n[uú]mero|celular|tel[eé]fono) es|me llamo|soy|celular|cel|tel[eé]fono|tel)\b:?`)
)

// ParseAmount extracts a peso amount from free text. It understands grouped
// digits ("2.500.000"), decimal multipliers ("2,5 millones", "1.5M") and
// thousands ("800 mil"). When several amounts appear the largest wins.
// Digits without a multiplier keep only the digits ("$1,500,000" is 1500000).
// Areas ("120 m2", "80 metros") are not amounts. It returns 0 when no number
// is present or the amount exceeds MaxAmount.
func ParseAmount(text string) int64 {
	folded := areaToken.ReplaceAllString(catalog.Fold(text), " ")
	var best int64
	for _, m := range amountToken.FindAllStringSubmatchIndex(folded, -1) {
		num := folded[m[2]:m[3]]
		suffix := ""
		if m[4] >= 0 {
			suffix = folded[m[4]:m[5]]
			if r, _ := utf8.DecodeRuneInString(folded[m[5]:]); unicode.IsLetter(r) || unicode.IsDigit(r) {
				suffix = ""
			}
		}
		if v := tokenValue(num, suffix); v > best && v <= MaxAmount {
			best = v
		}
	}
	return best
}

func multiplier(suffix string) int64 {
	switch suffix {
	case "millones", "millon", "mill", "mm", "m":
		return 1_000_000
	case "mil", "k":
		return 1_000
	default:
		return 1
	}
}

func tokenValue(num, suffix string) int64 {
	num = strings.TrimRight(num, ".,")
	mult := multiplier(suffix)
	if mult == 1 {
		return parseDigits(num)
	}

	whole, frac, ok := splitDecimal(num)
	if !ok {
		whole, frac = num, ""
	}
	w := parseDigits(whole)
	if w > math.MaxInt64/mult {
		return 0
	}
	scale := int64(1)
	for range frac {
		scale *= 10
	}
	return w*mult + parseDigits(frac)*mult/scale
}

// splitDecimal reports a decimal number: exactly one separator followed by one
// or two digits. "1.500" is a grouped thousand, not a decimal.
func splitDecimal(num string) (whole, frac string, ok bool) {
	idx := strings.IndexAny(num, ".,")
	if idx < 0 || strings.IndexAny(num[idx+1:], ".,") >= 0 {
		return "", "", false
	}
	frac = num[idx+1:]
	if len(frac) < 1 || len(frac) > 2 {
		return "", "", false
	}
	return num[:idx], frac, true
}

func parseDigits(s string) int64 {
	digits := domain.DigitsOnly(s)
	if digits == "" || len(digits) > 15 {
		return 0
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseRooms finds a bedroom count. "3 habitaciones" always counts. A bare
// small number counts only when bare is set and the message carries no amount
// that looks like a budget.
func parseRooms(text string, bare bool) int {
	folded := catalog.Fold(text)
	if m := roomsExplicit.FindStringSubmatch(folded); m != nil {
		if n, _ := strconv.Atoi(m[1]); n >= 1 && n <= maxRooms {
			return n
		}
	}
	if !bare || ParseAmount(folded) >= minBudget {
		return 0
	}
	if m := smallNumber.FindStringSubmatch(folded); m != nil {
		if n, _ := strconv.Atoi(m[1]); n >= 1 && n <= maxRooms {
			return n
		}
	}
	return 0
}

// extractPhone returns the first 7 to 13 digit phone number in text and the
// substring it was read from.
func extractPhone(text string) (phone, raw string) {
	for _, match := range phoneToken.FindAllString(text, -1) {
		digits := domain.DigitsOnly(match)
		if len(digits) >= 7 && len(digits) <= 13 {
			return digits, match
		}
	}
	return "", ""
}

// contactName strips the phone number and filler words from a contact message.
func contactName(text, rawPhone string) string {
	if rawPhone != "" {
		text = strings.Replace(text, rawPhone, " ", 1)
	}
	text = contactFiller.ReplaceAllString(text, " ")
	text = strings.Trim(strings.Join(strings.Fields(text), " "), " ,.;:-")
	return strings.Trim(strings.TrimSuffix(text, " y"), " ,.;:-")
}

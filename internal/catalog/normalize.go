package catalog

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jkindrix/bluehome/internal/domain"
)

var spaceRun = regexp.MustCompile(`\s+`)

// Fold lower-cases s, strips diacritics and collapses whitespace, so that
// "Número  Baños" and "numero banos" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	return strings.TrimSpace(spaceRun.ReplaceAllString(folded, " "))
}

type column int

const (
	colUnknown column = iota
	colCode
	colVideo
	colSheet
	colBedrooms
	colBathrooms
	colParking
	colRent
	colType
	colStatus
	colAddress
)

// Header aliases after Fold. Underscores are treated as spaces.
var columnAliases = map[string]column{
	"codigo":               colCode,
	"cod":                  colCode,
	"enlace youtube":       colVideo,
	"youtube":              colVideo,
	"video":                colVideo,
	"enlace ficha tecnica": colSheet,
	"ficha tecnica":        colSheet,
	"ficha":                colSheet,
	"numero habitaciones":  colBedrooms,
	"habitaciones":         colBedrooms,
	"numero banos":         colBathrooms,
	"banos":                colBathrooms,
	"parqueadero":          colParking,
	"valor canon":          colRent,
	"canon":                colRent,
	"tipo":                 colType,
	"tipo inmueble":        colType,
	"estado":               colStatus,
	"direccion":            colAddress,
}

func columnFor(header string) column {
	key := Fold(strings.ReplaceAll(strings.TrimPrefix(header, "\ufeff"), "_", " "))
	return columnAliases[key]
}

var (
	studioPattern     = regexp.MustCompile(`aparta\s*estudio|apartaestudio`)
	apartmentPattern  = regexp.MustCompile(`\bapart|\bapto\b`)
	housePattern      = regexp.MustCompile(`\bcasas?\b`)
	commercialPattern = regexp.MustCompile(`\blocal(es)?\b`)
)

// ParseType extracts a property type from free text. It returns "" when none is named.
func ParseType(text string) domain.PropertyType {
	t := Fold(text)
	switch {
	case studioPattern.MatchString(t), strings.Contains(t, "apart") && strings.Contains(t, "estud"):
		return domain.PropertyTypeStudio
	case apartmentPattern.MatchString(t):
		return domain.PropertyTypeApartment
	case housePattern.MatchString(t):
		return domain.PropertyTypeHouse
	case commercialPattern.MatchString(t):
		return domain.PropertyTypeCommercial
	}
	return ""
}

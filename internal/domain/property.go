// Package domain contains the core business entities and interfaces.
package domain

import (
	"strings"
	"unicode"
)

// PropertyType is a normalized listing type.
type PropertyType string

const (
	PropertyTypeHouse      PropertyType = "casa"
	PropertyTypeApartment  PropertyType = "apartamento"
	PropertyTypeStudio     PropertyType = "apartaestudio"
	PropertyTypeCommercial PropertyType = "local"
)

// NeedsBedrooms reports whether searches for this type ask for a bedroom count.
// Studios and commercial units do not.
func (t PropertyType) NeedsBedrooms() bool {
	switch t {
	case PropertyTypeStudio, PropertyTypeCommercial:
		return false
	default:
		return true
	}
}

// Valid reports whether t is one of the known types.
func (t PropertyType) Valid() bool {
	switch t {
	case PropertyTypeHouse, PropertyTypeApartment, PropertyTypeStudio, PropertyTypeCommercial:
		return true
	}
	return false
}

// StatusAvailable is the sheet status of a listing open for rent.
const StatusAvailable = "disponible"

// Property is one row of the listings spreadsheet.
type Property struct {
	Code      string `json:"codigo"`
	Type      string `json:"tipo"`
	Status    string `json:"estado"`
	Address   string `json:"direccion,omitempty"`
	Rent      int64  `json:"valor_canon"`
	Bedrooms  int    `json:"habitaciones"`
	Bathrooms int    `json:"banos"`
	Parking   string `json:"parqueadero,omitempty"`
	VideoURL  string `json:"enlace_youtube,omitempty"`
	SheetURL  string `json:"enlace_ficha_tecnica,omitempty"`
}

// IsAvailable reports whether the listing can be offered. An empty status counts as available.
func (p *Property) IsAvailable() bool {
	status := strings.TrimSpace(p.Status)
	return status == "" || strings.EqualFold(status, StatusAvailable)
}

// CodeDigits returns the code with every non-digit removed ("COD-012" -> "012").
func (p *Property) CodeDigits() string {
	return DigitsOnly(p.Code)
}

// DigitsOnly strips every non-digit rune from s.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SearchFilters narrows a catalog search. Zero values mean "any".
type SearchFilters struct {
	Type        PropertyType `json:"tipo,omitempty"`
	MaxRent     int64        `json:"presupuesto,omitempty"`
	MinBedrooms int          `json:"habitaciones,omitempty"`
	Offset      int          `json:"offset,omitempty"`
}

// IsZero reports whether no filter is set.
func (f SearchFilters) IsZero() bool {
	return f.Type == "" && f.MaxRent == 0 && f.MinBedrooms == 0
}

// Package format renders listings, amounts and fee breakdowns as chat text.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jkindrix/bluehome/internal/domain"
	"github.com/jkindrix/bluehome/internal/fees"
)

var (
	locale  = language.MustParse("es-CO")
	printer = message.NewPrinter(locale)
	peso, _ = currency.FromTag(locale)
)

// COP renders whole Colombian pesos, e.g. "$ 1.500.000".
func COP(n int64) string {
	if n < 0 {
		return "-$ " + printer.Sprintf("%d", -n)
	}
	return "$ " + printer.Sprintf("%d", n)
}

// CurrencyCode is the ISO code amounts are expressed in.
func CurrencyCode() string {
	return peso.String()
}

// Property renders a listing card.
func Property(p domain.Property) string {
	lines := []string{fmt.Sprintf("🏠 Código %s", p.Code)}
	if p.Address != "" {
		lines = append(lines, "📍 "+p.Address)
	}
	lines = append(lines, "💲 Canon: "+COP(p.Rent))

	parking := p.Parking
	if parking == "" {
		parking = "N/A"
	}
	lines = append(lines, fmt.Sprintf("🛏️ %d hab | 🚿 %d baños | 🅿️ %s", p.Bedrooms, p.Bathrooms, parking))

	if p.VideoURL != "" {
		lines = append(lines, "🎥 Video: "+p.VideoURL)
	}
	if p.SheetURL != "" {
		lines = append(lines, "📄 Ficha: "+p.SheetURL)
	}
	return strings.Join(lines, "\n")
}

// FeeBreakdown renders a fee simulation.
func FeeBreakdown(sim fees.Simulation) string {
	lines := []string{
		fmt.Sprintf("🧮 Simulación para un canon de %s:", COP(sim.Rent)),
		fmt.Sprintf("• Administración (%s%%): %s", percent(sim.AdminPercent), COP(sim.AdminFee)),
		fmt.Sprintf("• IVA sobre administración (%s%%): %s", percent(sim.VATPercent), COP(sim.VAT)),
		fmt.Sprintf("• Seguro de arrendamiento (%s%%): %s", percent(sim.InsurancePercent), COP(sim.Insurance)),
		fmt.Sprintf("• Total deducciones: %s", COP(sim.TotalDeductions)),
		fmt.Sprintf("✅ Recibirías: %s al mes", COP(sim.NetToOwner)),
		fmt.Sprintf("Valores aproximados en %s.", CurrencyCode()),
	}
	return strings.Join(lines, "\n")
}

// percent uses a decimal comma: 2.5 -> "2,5".
func percent(p float64) string {
	return strings.Replace(strconv.FormatFloat(p, 'f', -1, 64), ".", ",", 1)
}

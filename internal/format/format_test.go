package format

import (
	"strings"
	"testing"

	"github.com/jkindrix/bluehome/internal/domain"
	"github.com/jkindrix/bluehome/internal/fees"
)

func TestCOP(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{1500000, "$ 1.500.000"},
		{900000, "$ 900.000"},
		{12500000, "$ 12.500.000"},
		{0, "$ 0"},
		{-250000, "-$ 250.000"},
	}

	for _, tt := range tests {
		if got := COP(tt.input); got != tt.expected {
			t.Errorf("COP(%d) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestCurrencyCode(t *testing.T) {
	if got := CurrencyCode(); got != "COP" {
		t.Errorf("expected COP, got %q", got)
	}
}

func TestProperty(t *testing.T) {
	p := domain.Property{
		Code:      "101",
		Address:   "Cra 10 #20-30",
		Rent:      1500000,
		Bedrooms:  3,
		Bathrooms: 2,
		VideoURL:  "https://youtu.be/a",
	}

	expected := "🏠 Código 101\n" +
		"📍 Cra 10 #20-30\n" +
		"💲 Canon: $ 1.500.000\n" +
		"🛏️ 3 hab | 🚿 2 baños | 🅿️ N/A\n" +
		"🎥 Video: https://youtu.be/a"

	if got := Property(p); got != expected {
		t.Errorf("unexpected card:\n%s\nexpected:\n%s", got, expected)
	}
}

func TestProperty_OptionalLines(t *testing.T) {
	card := Property(domain.Property{Code: "7", Rent: 900000, Parking: "Sí", SheetURL: "https://fichas/7"})

	if strings.Contains(card, "📍") || strings.Contains(card, "🎥") {
		t.Errorf("expected no address or video line, got:\n%s", card)
	}
	if !strings.Contains(card, "🅿️ Sí") || !strings.HasSuffix(card, "📄 Ficha: https://fichas/7") {
		t.Errorf("expected parking and sheet lines, got:\n%s", card)
	}
}

func TestFeeBreakdown(t *testing.T) {
	sim, err := fees.NewSimulator(10, 19, 2.5).Simulate(1500000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := FeeBreakdown(sim)
	for _, want := range []string{
		"canon de $ 1.500.000",
		"Administración (10%): $ 150.000",
		"IVA sobre administración (19%): $ 28.500",
		"Seguro de arrendamiento (2,5%): $ 37.500",
		"Total deducciones: $ 216.000",
		"Recibirías: $ 1.284.000 al mes",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected breakdown to contain %q, got:\n%s", want, text)
		}
	}
}

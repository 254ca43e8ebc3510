package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jkindrix/bluehome/internal/domain"
)

const sheetCSV = "\ufeffCódigo,Enlace YouTube,Enlace Ficha Técnica,Número Habitaciones,Número Baños,Parqueadero,Valor Canon,Tipo,Estado,Dirección\n" +
	"101,https://youtu.be/a,https://fichas/101,3,2,Sí,\"$1.500.000\",Apartamento,Disponible,Cra 10 #20-30\n" +
	",,,,,,,,,\n" +
	"\n" +
	"102,,,2,1,No,2.000.000,Casa\n" +
	"  103 , , , , , ,900000,Apartaestudio,arrendado,\n"

func TestParseCSV(t *testing.T) {
	props, err := ParseCSV(strings.NewReader(sheetCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(props) != 3 {
		t.Fatalf("expected 3 properties (empty code dropped), got %d", len(props))
	}

	p := props[0]
	if p.Code != "101" || p.Rent != 1500000 || p.Bedrooms != 3 || p.Bathrooms != 2 {
		t.Errorf("unexpected first row: %+v", p)
	}
	if p.VideoURL != "https://youtu.be/a" || p.SheetURL != "https://fichas/101" {
		t.Errorf("expected link columns mapped, got %+v", p)
	}
	if p.Address != "Cra 10 #20-30" || p.Parking != "Sí" {
		t.Errorf("expected address and parking mapped, got %+v", p)
	}

	if props[1].Status != domain.StatusAvailable {
		t.Errorf("expected short row to default status, got %q", props[1].Status)
	}
	if props[1].Rent != 2000000 {
		t.Errorf("expected rent 2000000, got %d", props[1].Rent)
	}
	if props[2].Code != "103" || props[2].Status != "arrendado" {
		t.Errorf("expected trimmed code and status, got %+v", props[2])
	}
}

func TestParseCSV_Empty(t *testing.T) {
	props, err := ParseCSV(strings.NewReader(""))
	if err != nil || props != nil {
		t.Errorf("expected no properties and no error, got %v, %v", props, err)
	}
}

func TestParseCSV_HeaderAliases(t *testing.T) {
	input := "codigo,canon,habitaciones,banos,tipo_inmueble\n7,1200000,2,1,Casa\n"
	props, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(props) != 1 || props[0].Rent != 1200000 || props[0].Bedrooms != 2 || props[0].Type != "Casa" {
		t.Errorf("unexpected parse: %+v", props)
	}
}

func TestCSVSource_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(sheetCSV))
	}))
	defer server.Close()

	src := NewCSVSource(server.URL+"/export?format=csv", nil, 5*time.Second)
	props, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(props) != 3 {
		t.Errorf("expected 3 properties, got %d", len(props))
	}
}

func TestCSVSource_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not shared", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewCSVSource(server.URL, nil, time.Second).Load(context.Background())
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestCSVSource_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inmuebles.csv")
	if err := os.WriteFile(path, []byte(sheetCSV), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	for _, location := range []string{path, "file://" + path} {
		props, err := NewCSVSource(location, nil, time.Second).Load(context.Background())
		if err != nil {
			t.Fatalf("load %s: %v", location, err)
		}
		if len(props) != 3 {
			t.Errorf("%s: expected 3 properties, got %d", location, len(props))
		}
	}
}

func TestCSVSource_MissingFile(t *testing.T) {
	_, err := NewCSVSource(filepath.Join(t.TempDir(), "missing.csv"), nil, time.Second).Load(context.Background())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input    string
		expected domain.PropertyType
	}{
		{"busco un apartamento", domain.PropertyTypeApartment},
		{"Apartaestudio en el centro", domain.PropertyTypeStudio},
		{"aparta estudio", domain.PropertyTypeStudio},
		{"un apto de 2 millones", domain.PropertyTypeApartment},
		{"CASA", domain.PropertyTypeHouse},
		{"casas campestres", domain.PropertyTypeHouse},
		{"local comercial", domain.PropertyTypeCommercial},
		{"en la localidad de suba", ""},
		{"bodega", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseType(tt.input); got != tt.expected {
				t.Errorf("ParseType(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFold(t *testing.T) {
	if got := Fold("  Número   Baños "); got != "numero banos" {
		t.Errorf("expected 'numero banos', got %q", got)
	}
}

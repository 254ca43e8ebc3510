package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jkindrix/bluehome/internal/domain"
)

// maxCSVBytes bounds a sheet export download.
const maxCSVBytes = 10 << 20

// Source loads the full listing set.
type Source interface {
	Load(ctx context.Context) ([]domain.Property, error)
}

// CSVSource reads a spreadsheet CSV export from an http(s) URL, a file:// URL
// or a plain filesystem path.
type CSVSource struct {
	location string
	client   *http.Client
}

// NewCSVSource creates a source. A nil client gets one with the given timeout.
func NewCSVSource(location string, client *http.Client, timeout time.Duration) *CSVSource {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &CSVSource{location: strings.TrimSpace(location), client: client}
}

// Location returns where the CSV is read from.
func (s *CSVSource) Location() string {
	return s.location
}

// Load fetches and parses the CSV.
func (s *CSVSource) Load(ctx context.Context) ([]domain.Property, error) {
	if s.location == "" {
		return nil, nil
	}

	if strings.HasPrefix(s.location, "http://") || strings.HasPrefix(s.location, "https://") {
		return s.loadHTTP(ctx)
	}

	f, err := os.Open(strings.TrimPrefix(s.location, "file://"))
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()

	return ParseCSV(f)
}

func (s *CSVSource) loadHTTP(ctx context.Context) ([]domain.Property, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch catalog: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return ParseCSV(io.LimitReader(resp.Body, maxCSVBytes))
}

// ParseCSV parses a listings sheet. The first row is the header; rows without
// a code are dropped and short rows are padded with empty fields.
func ParseCSV(r io.Reader) ([]domain.Property, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns := make([]column, len(header))
	for i, h := range header {
		columns[i] = columnFor(h)
	}

	var props []domain.Property
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		p := propertyFromRecord(columns, record)
		if p.Code == "" {
			continue
		}
		props = append(props, p)
	}
	return props, nil
}

func propertyFromRecord(columns []column, record []string) domain.Property {
	var p domain.Property
	for i, col := range columns {
		if i >= len(record) {
			break
		}
		value := strings.TrimSpace(record[i])
		switch col {
		case colCode:
			p.Code = value
		case colVideo:
			p.VideoURL = value
		case colSheet:
			p.SheetURL = value
		case colBedrooms:
			p.Bedrooms = atoiDigits(value)
		case colBathrooms:
			p.Bathrooms = atoiDigits(value)
		case colParking:
			p.Parking = value
		case colRent:
			p.Rent = int64(atoiDigits(value))
		case colType:
			p.Type = value
		case colStatus:
			p.Status = value
		case colAddress:
			p.Address = value
		}
	}
	if p.Status == "" {
		p.Status = domain.StatusAvailable
	}
	return p
}

// atoiDigits keeps only digits ("$1.500.000" -> 1500000). Empty or invalid gives 0.
func atoiDigits(s string) int {
	n, err := strconv.Atoi(domain.DigitsOnly(s))
	if err != nil {
		return 0
	}
	return n
}

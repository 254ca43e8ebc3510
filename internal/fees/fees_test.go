package fees

import (
	"testing"

	apperrors "github.com/jkindrix/bluehome/internal/errors"
)

func TestSimulate(t *testing.T) {
	s := NewSimulator(10, 19, 2.5)

	tests := []struct {
		name      string
		rent      int64
		admin     int64
		vat       int64
		insurance int64
		net       int64
	}{
		{"round numbers", 1000000, 100000, 19000, 25000, 856000},
		{"typical rent", 1500000, 150000, 28500, 37500, 1284000},
		{"half rounds up", 1005, 101, 19, 25, 860},
		{"small rent", 1, 0, 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, err := s.Simulate(tt.rent)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sim.AdminFee != tt.admin {
				t.Errorf("expected admin %d, got %d", tt.admin, sim.AdminFee)
			}
			if sim.VAT != tt.vat {
				t.Errorf("expected vat %d, got %d", tt.vat, sim.VAT)
			}
			if sim.Insurance != tt.insurance {
				t.Errorf("expected insurance %d, got %d", tt.insurance, sim.Insurance)
			}
			if sim.NetToOwner != tt.net {
				t.Errorf("expected net %d, got %d", tt.net, sim.NetToOwner)
			}
			if sim.TotalDeductions+sim.NetToOwner != tt.rent {
				t.Errorf("deductions %d + net %d should equal rent %d", sim.TotalDeductions, sim.NetToOwner, tt.rent)
			}
		})
	}
}

func TestSimulate_NonPositiveRent(t *testing.T) {
	s := NewSimulator(0, 0, 0)
	for _, rent := range []int64{0, -100} {
		_, err := s.Simulate(rent)
		if err == nil {
			t.Fatalf("expected error for rent %d", rent)
		}
		if !apperrors.IsUserError(err) {
			t.Errorf("expected user error, got %v", err)
		}
	}
}

func TestSimulate_RentTooLarge(t *testing.T) {
	s := NewSimulator(0, 0, 0)

	_, err := s.Simulate(9_999_999_999_999_000)
	if err == nil {
		t.Fatal("expected error for a rent whose fees overflow")
	}
	if !apperrors.IsUserError(err) {
		t.Errorf("expected user error, got %v", err)
	}

	sim, err := s.Simulate(1_000_000_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sim.AdminFee < 0 || sim.NetToOwner > sim.Rent || sim.TotalDeductions+sim.NetToOwner != sim.Rent {
		t.Errorf("fee invariant broken: %+v", sim)
	}
}

func TestNewSimulator_Defaults(t *testing.T) {
	s := NewSimulator(0, -1, 0)
	if s.AdminPercent != DefaultAdminPercent || s.VATPercent != DefaultVATPercent {
		t.Errorf("expected default percentages, got %+v", s)
	}
	if s.InsurancePercent != 0 {
		t.Errorf("expected zero insurance kept, got %f", s.InsurancePercent)
	}
}

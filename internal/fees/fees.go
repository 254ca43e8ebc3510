// Package fees computes what an owner receives after the agency's deductions
// on a monthly rent.
package fees

import (
	"math"

	apperrors "github.com/jkindrix/bluehome/internal/errors"
)

// Default percentages.
const (
	DefaultAdminPercent     = 10.0
	DefaultVATPercent       = 19.0
	DefaultInsurancePercent = 2.5
)

// Simulator holds the fee percentages.
type Simulator struct {
	AdminPercent     float64
	VATPercent       float64
	InsurancePercent float64
}

// Simulation is a fee breakdown in whole pesos.
type Simulation struct {
	Rent            int64 `json:"rent"`
	AdminFee        int64 `json:"admin_fee"`
	VAT             int64 `json:"vat"`
	Insurance       int64 `json:"insurance"`
	TotalDeductions int64 `json:"total_deductions"`
	NetToOwner      int64 `json:"net_to_owner"`

	AdminPercent     float64 `json:"admin_percent"`
	VATPercent       float64 `json:"vat_percent"`
	InsurancePercent float64 `json:"insurance_percent"`
}

// NewSimulator returns a simulator, falling back to the defaults for
// non-positive percentages. A zero insurance percent is kept.
func NewSimulator(adminPercent, vatPercent, insurancePercent float64) Simulator {
	if adminPercent <= 0 {
		adminPercent = DefaultAdminPercent
	}
	if vatPercent <= 0 {
		vatPercent = DefaultVATPercent
	}
	if insurancePercent < 0 {
		insurancePercent = DefaultInsurancePercent
	}
	return Simulator{
		AdminPercent:     adminPercent,
		VATPercent:       vatPercent,
		InsurancePercent: insurancePercent,
	}
}

// Simulate computes the breakdown for a monthly rent.
func (s Simulator) Simulate(rent int64) (Simulation, error) {
	if rent <= 0 {
		return Simulation{}, apperrors.ValidationFailed("rent must be positive")
	}

	admin, ok1 := applyPercent(rent, s.AdminPercent)
	vat, ok2 := applyPercent(admin, s.VATPercent)
	insurance, ok3 := applyPercent(rent, s.InsurancePercent)
	if !ok1 || !ok2 || !ok3 {
		return Simulation{}, apperrors.ValidationFailed("rent is too large")
	}
	total := admin + vat + insurance

	return Simulation{
		Rent:             rent,
		AdminFee:         admin,
		VAT:              vat,
		Insurance:        insurance,
		TotalDeductions:  total,
		NetToOwner:       rent - total,
		AdminPercent:     s.AdminPercent,
		VATPercent:       s.VATPercent,
		InsurancePercent: s.InsurancePercent,
	}, nil
}

// applyPercent returns amount*percent/100 rounded half-up, using basis points.
// It reports false when the product would overflow.
func applyPercent(amount int64, percent float64) (int64, bool) {
	bp := int64(math.Round(percent * 100))
	if bp > 0 && amount > (math.MaxInt64-5000)/bp {
		return 0, false
	}
	return (amount*bp + 5000) / 10000, true
}

package comp

import "github.com/shopspring/decimal"

// MileageRates carries the per-mile reimbursement rates in cents. The
// vehicle rate applies when the rep drove their own car; the transit rate
// covers everything else.
type MileageRates struct {
	VehicleCentsPerMile Cents
	TransitCentsPerMile Cents
}

// DefaultMileageRates mirrors the standing reimbursement policy:
// $0.35/mile with a vehicle, $0.20/mile without.
var DefaultMileageRates = MileageRates{VehicleCentsPerMile: 35, TransitCentsPerMile: 20}

// Reimbursement computes the dollar reimbursement owed for a shift's
// travel. Negative miles or tolls are treated as zero; the result is
// rounded half up to the cent.
func Reimbursement(rates MileageRates, miles float64, tollCents Cents, hasVehicle bool) Cents {
	if miles < 0 {
		miles = 0
	}
	if tollCents < 0 {
		tollCents = 0
	}
	rate := rates.TransitCentsPerMile
	if hasVehicle {
		rate = rates.VehicleCentsPerMile
	}
	mileage := decimal.NewFromFloat(miles).
		Mul(decimal.NewFromInt(rate)).
		Round(0).
		IntPart()
	return mileage + tollCents
}

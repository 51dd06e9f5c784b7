// Package comp holds the pure compensation arithmetic: mileage
// reimbursement, activation billing, and the milestone bonus schedule.
// Money is integer cents everywhere; decimals appear only transiently for
// fractional rate math and are rounded back to cents before returning.
package comp

import "github.com/shopspring/decimal"

// Cents is a monetary value in minor units.
type Cents = int64

// Dollars renders a cent amount as a 2-decimal value for reporting.
func Dollars(c Cents) decimal.Decimal {
	return decimal.NewFromInt(c).Shift(-2)
}

// BpsOf applies a basis-point rate to a cent amount, rounding half up to
// the nearest cent.
func BpsOf(amount Cents, bps int64) Cents {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(bps)).
		Shift(-4).
		Round(0).
		IntPart()
}

package comp

import "github.com/shopspring/decimal"

// RateTable maps brand ids to the hourly fee billed for activation
// shifts. Brands without a configured rate fall back to the default.
type RateTable struct {
	Rates       map[string]Cents
	DefaultRate Cents
}

// NewRateTable builds a rate table from configured rows.
func NewRateTable(defaultRate Cents, rates map[string]Cents) RateTable {
	if rates == nil {
		rates = map[string]Cents{}
	}
	return RateTable{Rates: rates, DefaultRate: defaultRate}
}

// RateFor returns the hourly billing rate for a brand.
func (t RateTable) RateFor(brandID string) Cents {
	if rate, ok := t.Rates[brandID]; ok {
		return rate
	}
	return t.DefaultRate
}

// ShiftClientRevenue derives the fee billed to the sponsoring brand for a
// completed activation shift: hours worked times the brand's hourly rate,
// rounded half up to the cent. Non-positive hours bill nothing.
func ShiftClientRevenue(table RateTable, brandID string, hours float64) Cents {
	if hours <= 0 {
		return 0
	}
	return decimal.NewFromFloat(hours).
		Mul(decimal.NewFromInt(table.RateFor(brandID))).
		Round(0).
		IntPart()
}

// HourlyWage derives a rep's pay for hours worked at a cent rate, rounded
// half up to the cent. Non-positive hours pay nothing.
func HourlyWage(rateCents Cents, hours float64) Cents {
	if hours <= 0 {
		return 0
	}
	return decimal.NewFromFloat(hours).
		Mul(decimal.NewFromInt(rateCents)).
		Round(0).
		IntPart()
}

// Package points implements the gamified points ledger: fixed 3-decimal
// arithmetic, per-sale award breakdowns, and the append-only ledger that
// backs the cached rep counters.
package points

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/greenroute/fieldcrm/internal/comp"
)

var (
	newPlacementPoints = decimal.NewFromInt(5)
	reorderPoints      = decimal.NewFromInt(3)
	leadPoints         = decimal.NewFromInt(1)
)

// Round3 rounds to the fixed 3-decimal precision used for all point values.
func Round3(d decimal.Decimal) decimal.Decimal {
	return d.Round(3)
}

// Millis converts a 3-decimal point value to integer milli-points for
// storage, so ledger sums and counters reconcile exactly.
func Millis(d decimal.Decimal) int64 {
	return Round3(d).Shift(3).IntPart()
}

// FromMillis converts stored milli-points back to a decimal point value.
func FromMillis(millis int64) decimal.Decimal {
	return decimal.NewFromInt(millis).Shift(-3)
}

// Breakdown itemizes the points earned by a single sale.
type Breakdown struct {
	RevenuePoints decimal.Decimal `json:"revenue_points"`
	BrandPoints   decimal.Decimal `json:"brand_points"`
	TotalPoints   decimal.Decimal `json:"total_points"`
	NewPlacements []string        `json:"new_placements,omitempty"`
	Reorders      []string        `json:"reorders,omitempty"`
}

// OrderPoints scores a sale: one point per $100 of revenue, plus 5.000 per
// brand never sold into the account before and 3.000 per re-ordered brand.
// A brand appearing on multiple lines of the same sale counts once.
func OrderPoints(amountCents comp.Cents, brandIDs []string, purchased map[string]bool) Breakdown {
	// amount/100 in dollars is amount/10000 in cents
	revenue := Round3(decimal.NewFromInt(amountCents).Shift(-4))

	seen := make(map[string]bool, len(brandIDs))
	var bd Breakdown
	brandSum := decimal.Zero
	for _, brand := range brandIDs {
		if brand == "" || seen[brand] {
			continue
		}
		seen[brand] = true
		if purchased[brand] {
			brandSum = brandSum.Add(reorderPoints)
			bd.Reorders = append(bd.Reorders, brand)
		} else {
			brandSum = brandSum.Add(newPlacementPoints)
			bd.NewPlacements = append(bd.NewPlacements, brand)
		}
	}
	sort.Strings(bd.NewPlacements)
	sort.Strings(bd.Reorders)

	bd.RevenuePoints = revenue
	bd.BrandPoints = Round3(brandSum)
	bd.TotalPoints = Round3(revenue.Add(bd.BrandPoints))
	return bd
}

// LeadPoints is the flat award for registering a new lead.
func LeadPoints() decimal.Decimal {
	return Round3(leadPoints)
}

// PeriodKey buckets point counters by calendar month.
func PeriodKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// PeriodStart returns the first instant of the period containing t.
func PeriodStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

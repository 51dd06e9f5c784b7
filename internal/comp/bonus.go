package comp

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// BonusTier unlocks a cumulative bonus total once a rep's all-time
// distinct-store count reaches Stores.
type BonusTier struct {
	Stores     int
	TotalCents Cents
}

// BonusSchedule is the milestone schedule: a monotone step function from
// store count to the total bonus owed. It is recomputed from the current
// count on every use rather than accumulated incrementally, so replays and
// retries cannot double-pay.
type BonusSchedule struct {
	tiers []BonusTier
}

// NewBonusSchedule validates and sorts the tiers. Totals must be
// non-decreasing in store count so LifetimeBonus stays monotone.
func NewBonusSchedule(tiers []BonusTier) (BonusSchedule, error) {
	sorted := make([]BonusTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Stores < sorted[j].Stores })
	var prev Cents
	for _, tier := range sorted {
		if tier.Stores <= 0 {
			return BonusSchedule{}, fmt.Errorf("bonus tier requires a positive store count, got %d", tier.Stores)
		}
		if tier.TotalCents < prev {
			return BonusSchedule{}, fmt.Errorf("bonus total %d regresses below %d at %d stores", tier.TotalCents, prev, tier.Stores)
		}
		prev = tier.TotalCents
	}
	return BonusSchedule{tiers: sorted}, nil
}

// ParseBonusSchedule reads a "stores:cents" comma list, e.g.
// "10:25000,25:75000".
func ParseBonusSchedule(raw string) (BonusSchedule, error) {
	var tiers []BonusTier
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		fields := strings.SplitN(trimmed, ":", 2)
		if len(fields) != 2 {
			return BonusSchedule{}, fmt.Errorf("malformed bonus tier %q", trimmed)
		}
		stores, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return BonusSchedule{}, fmt.Errorf("malformed bonus tier %q: %w", trimmed, err)
		}
		cents, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil {
			return BonusSchedule{}, fmt.Errorf("malformed bonus tier %q: %w", trimmed, err)
		}
		tiers = append(tiers, BonusTier{Stores: stores, TotalCents: cents})
	}
	return NewBonusSchedule(tiers)
}

// LifetimeBonus returns the total bonus owed at the given all-time
// distinct-store count: the highest tier total whose threshold the count
// has crossed. Pure and idempotent.
func (s BonusSchedule) LifetimeBonus(storeCount int) Cents {
	var total Cents
	for _, tier := range s.tiers {
		if storeCount < tier.Stores {
			break
		}
		total = tier.TotalCents
	}
	return total
}

// Tiers returns a copy of the schedule for reporting.
func (s BonusSchedule) Tiers() []BonusTier {
	out := make([]BonusTier, len(s.tiers))
	copy(out, s.tiers)
	return out
}

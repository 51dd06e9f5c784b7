package points

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestOrderPointsNewPlacements(t *testing.T) {
	// $250 sale, two brands never sold here before
	bd := OrderPoints(25000, []string{"brand-a", "brand-b"}, nil)
	if !bd.RevenuePoints.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("expected 2.500 revenue points, got %s", bd.RevenuePoints)
	}
	if !bd.BrandPoints.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected 10.000 brand points, got %s", bd.BrandPoints)
	}
	if !bd.TotalPoints.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("expected 12.500 total points, got %s", bd.TotalPoints)
	}
	if len(bd.NewPlacements) != 2 || len(bd.Reorders) != 0 {
		t.Fatalf("unexpected classification %+v", bd)
	}
}

func TestOrderPointsReorderClassification(t *testing.T) {
	purchased := map[string]bool{"brand-a": true}
	bd := OrderPoints(10000, []string{"brand-a", "brand-b"}, purchased)
	// 1.000 revenue + 3.000 re-order + 5.000 new placement
	if !bd.TotalPoints.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("expected 9.000 total points, got %s", bd.TotalPoints)
	}
	if len(bd.Reorders) != 1 || bd.Reorders[0] != "brand-a" {
		t.Fatalf("expected brand-a classified as re-order, got %+v", bd.Reorders)
	}
	if len(bd.NewPlacements) != 1 || bd.NewPlacements[0] != "brand-b" {
		t.Fatalf("expected brand-b classified as new placement, got %+v", bd.NewPlacements)
	}
}

func TestOrderPointsFirstSaleThenReorder(t *testing.T) {
	purchased := map[string]bool{}
	first := OrderPoints(0, []string{"brand-x"}, purchased)
	if !first.BrandPoints.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("first sale of a brand must score 5.000, got %s", first.BrandPoints)
	}
	purchased["brand-x"] = true
	for i := 0; i < 3; i++ {
		again := OrderPoints(0, []string{"brand-x"}, purchased)
		if !again.BrandPoints.Equal(decimal.NewFromInt(3)) {
			t.Fatalf("subsequent sale must score 3.000, got %s", again.BrandPoints)
		}
	}
}

func TestOrderPointsDuplicateBrandCountsOnce(t *testing.T) {
	bd := OrderPoints(0, []string{"brand-a", "brand-a", ""}, nil)
	if !bd.BrandPoints.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("duplicate brand lines must count once, got %s", bd.BrandPoints)
	}
}

func TestRound3Stable(t *testing.T) {
	for _, raw := range []string{"0", "1.0005", "2.4999", "-3.14159", "12.5"} {
		d := decimal.RequireFromString(raw)
		once := Round3(d)
		if !Round3(once).Equal(once) {
			t.Fatalf("round3 not stable for %s: %s vs %s", raw, once, Round3(once))
		}
	}
}

func TestMillisRoundTrip(t *testing.T) {
	for _, raw := range []string{"12.5", "1", "0.001", "9"} {
		d := decimal.RequireFromString(raw)
		if !FromMillis(Millis(d)).Equal(Round3(d)) {
			t.Fatalf("millis round trip lost precision for %s", raw)
		}
	}
}

func TestLeadPoints(t *testing.T) {
	if !LeadPoints().Equal(decimal.NewFromInt(1)) {
		t.Fatalf("lead award must be flat 1.000, got %s", LeadPoints())
	}
}

func TestPeriodKey(t *testing.T) {
	at := time.Date(2025, time.March, 14, 9, 26, 0, 0, time.UTC)
	if got := PeriodKey(at); got != "2025-03" {
		t.Fatalf("unexpected period key %q", got)
	}
	if got := PeriodStart(at); !got.Equal(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected period start %s", got)
	}
}

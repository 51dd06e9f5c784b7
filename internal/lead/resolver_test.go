package lead

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/greenroute/fieldcrm/internal/db"
)

const window = 45 * 24 * time.Hour

func TestNameKeyNormalization(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Green Leaf", "green leaf"},
		{"  Green   Leaf  ", "green leaf"},
		{"GREEN\tLEAF", "green leaf"},
		{"greenleaf", "greenleaf"},
		{"   ", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NameKey(tc.in); got != tc.want {
			t.Errorf("NameKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClassifyOwnerInsideWindowRedirects(t *testing.T) {
	owner := uuid.New()
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	existing := db.Lead{
		ID:        uuid.New(),
		NameKey:   "green leaf",
		RepID:     owner,
		Status:    db.LeadStatusProspect,
		CreatedAt: now.Add(-10 * 24 * time.Hour),
	}
	res := Classify(existing, owner, now, window)
	if res.Outcome != OutcomeRedirectToSale {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeRedirectToSale)
	}
	if res.Message == "" {
		t.Fatal("expected a rep-facing message")
	}
}

func TestClassifyOtherRepInsideWindowLocked(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	existing := db.Lead{
		RepID:     owner,
		Status:    db.LeadStatusSamplesRequested,
		CreatedAt: now.Add(-10 * 24 * time.Hour),
	}
	res := Classify(existing, other, now, window)
	if res.Outcome != OutcomeRejectLocked {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeRejectLocked)
	}
}

func TestClassifyExpiredWindowOpensPool(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	existing := db.Lead{
		RepID:     owner,
		Status:    db.LeadStatusProspect,
		CreatedAt: now.Add(-46 * 24 * time.Hour),
	}
	for _, requester := range []uuid.UUID{owner, other} {
		res := Classify(existing, requester, now, window)
		if res.Outcome != OutcomeRedirectToSale {
			t.Fatalf("requester %s: outcome = %s, want %s", requester, res.Outcome, OutcomeRedirectToSale)
		}
	}
}

func TestClassifySoldAlwaysRejects(t *testing.T) {
	owner := uuid.New()
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	existing := db.Lead{
		RepID:     owner,
		Status:    db.LeadStatusSold,
		CreatedAt: now.Add(-400 * 24 * time.Hour),
	}
	res := Classify(existing, owner, now, window)
	if res.Outcome != OutcomeRejectSold {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeRejectSold)
	}
	res = Classify(existing, uuid.New(), now, window)
	if res.Outcome != OutcomeRejectSold {
		t.Fatalf("other rep: outcome = %s, want %s", res.Outcome, OutcomeRejectSold)
	}
}

func TestClassifyWindowBoundary(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

	justInside := db.Lead{RepID: owner, Status: db.LeadStatusProspect, CreatedAt: now.Add(-window + time.Second)}
	if res := Classify(justInside, other, now, window); res.Outcome != OutcomeRejectLocked {
		t.Fatalf("just inside window: outcome = %s, want %s", res.Outcome, OutcomeRejectLocked)
	}

	exactlyAt := db.Lead{RepID: owner, Status: db.LeadStatusProspect, CreatedAt: now.Add(-window)}
	if res := Classify(exactlyAt, other, now, window); res.Outcome != OutcomeRedirectToSale {
		t.Fatalf("exactly at window: outcome = %s, want %s", res.Outcome, OutcomeRedirectToSale)
	}
}

func TestClassifyMessagesAreDistinct(t *testing.T) {
	owner := uuid.New()
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	fresh := db.Lead{RepID: owner, Status: db.LeadStatusProspect, CreatedAt: now.Add(-time.Hour)}
	sold := db.Lead{RepID: owner, Status: db.LeadStatusSold, CreatedAt: now.Add(-time.Hour)}

	locked := Classify(fresh, uuid.New(), now, window)
	redirect := Classify(fresh, owner, now, window)
	rejected := Classify(sold, owner, now, window)
	if locked.Message == redirect.Message || locked.Message == rejected.Message || redirect.Message == rejected.Message {
		t.Fatal("each outcome must carry a distinct explanation")
	}
}

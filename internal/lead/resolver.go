package lead

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greenroute/fieldcrm/internal/db"
)

// Outcome is the resolver's decision for a submitted account name.
type Outcome string

const (
	// OutcomeCreate means no claim existed and a new lead was inserted.
	OutcomeCreate Outcome = "CREATE"
	// OutcomeRedirectToSale means the account is workable but a sale, not
	// a duplicate lead, is the right next action.
	OutcomeRedirectToSale Outcome = "REDIRECT_TO_SALE"
	// OutcomeRejectSold means the account is a converted client.
	OutcomeRejectSold Outcome = "REJECT_SOLD"
	// OutcomeRejectLocked means another rep holds an active claim.
	OutcomeRejectLocked Outcome = "REJECT_LOCKED"
)

// Resolution is the resolver's answer: the outcome, a rep-facing message
// explaining it, and the lead record it applies to.
type Resolution struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
	Lead    db.Lead `json:"lead"`
}

// NameKey normalizes an account name into its uniqueness key: lowercase,
// surrounding whitespace trimmed, runs of inner whitespace collapsed to a
// single space. "Green  Leaf " and "green leaf" resolve to the same claim.
func NameKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Classify decides the outcome for a submission that matched an existing
// lead. The created-at timestamp starts the exclusivity window; once the
// window lapses the claim returns to the open pool and any rep may attach
// a sale, though the record itself is never duplicated.
func Classify(existing db.Lead, requester uuid.UUID, now time.Time, window time.Duration) Resolution {
	if existing.Status == db.LeadStatusSold {
		return Resolution{
			Outcome: OutcomeRejectSold,
			Message: "this account is already a converted client; no new lead may be created for it",
			Lead:    existing,
		}
	}
	age := now.Sub(existing.CreatedAt)
	if age < window {
		if existing.RepID == requester {
			return Resolution{
				Outcome: OutcomeRedirectToSale,
				Message: "you already hold the claim on this account; log a sale against it instead of a new lead",
				Lead:    existing,
			}
		}
		return Resolution{
			Outcome: OutcomeRejectLocked,
			Message: "another rep holds an active claim on this account; the claim expires " + existing.CreatedAt.Add(window).Format(time.RFC3339),
			Lead:    existing,
		}
	}
	return Resolution{
		Outcome: OutcomeRedirectToSale,
		Message: "the exclusivity window on this account has lapsed; it is in the open pool and any rep may claim it with a sale",
		Lead:    existing,
	}
}

package db

import (
	"time"

	"github.com/google/uuid"
)

// LeadStatus is the forward-only lifecycle of a prospective account.
type LeadStatus string

const (
	LeadStatusProspect         LeadStatus = "prospect"
	LeadStatusSamplesRequested LeadStatus = "samples_requested"
	LeadStatusSamplesDelivered LeadStatus = "samples_delivered"
	LeadStatusActive           LeadStatus = "active"
	LeadStatusSold             LeadStatus = "sold"
)

// PaymentStatus is the one-way pending→paid state of a financial record.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Lead is a prospective or converted retail account. NameKey is the
// normalized uniqueness key; at most one non-deleted row per key.
type Lead struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	NameKey       string     `json:"name_key"`
	RepID         uuid.UUID  `json:"rep_id"`
	Status        LeadStatus `json:"status"`
	Priority      int32      `json:"priority"`
	LicenseNumber *string    `json:"license_number,omitempty"`
	Contacts      []byte     `json:"contacts,omitempty"`
	SampleBrands  []string   `json:"sample_brands,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Sale is a financial record of product sold into an account.
type Sale struct {
	ID              uuid.UUID     `json:"id"`
	RepID           uuid.UUID     `json:"rep_id"`
	LeadID          *uuid.UUID    `json:"lead_id,omitempty"`
	AccountName     string        `json:"account_name"`
	AccountKey      string        `json:"account_key"`
	AmountCents     int64         `json:"amount_cents"`
	SaleDate        time.Time     `json:"sale_date"`
	Items           []byte        `json:"items,omitempty"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	CommissionCents int64         `json:"commission_cents"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Shift is a completed brand-activation shift worked by a rep.
type Shift struct {
	ID                 uuid.UUID     `json:"id"`
	RepID              uuid.UUID     `json:"rep_id"`
	BrandID            string        `json:"brand_id"`
	AccountName        *string       `json:"account_name,omitempty"`
	AccountKey         *string       `json:"account_key,omitempty"`
	Hours              float64       `json:"hours"`
	Miles              float64       `json:"miles"`
	TollCents          int64         `json:"toll_cents"`
	HasVehicle         bool          `json:"has_vehicle"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	ReimbursementCents int64         `json:"reimbursement_cents"`
	RevenueCents       int64         `json:"revenue_cents"`
	CreatedAt          time.Time     `json:"created_at"`
}

// Rep is a field sales representative. Point counters are cached
// projections of the ledger; the ledger is the source of truth.
type Rep struct {
	ID                   uuid.UUID `json:"id"`
	Name                 string    `json:"name"`
	LifetimePointsMillis int64     `json:"lifetime_points_millis"`
	PeriodKey            string    `json:"period_key"`
	PeriodPointsMillis   int64     `json:"period_points_millis"`
	CreatedAt            time.Time `json:"created_at"`
}

// PointsLedgerEntry is an append-only record of points earned. Entries
// are never mutated or deleted.
type PointsLedgerEntry struct {
	ID             uuid.UUID `json:"id"`
	RepID          uuid.UUID `json:"rep_id"`
	Kind           string    `json:"kind"`
	RefID          string    `json:"ref_id"`
	PointsMillis   int64     `json:"points_millis"`
	Breakdown      []byte    `json:"breakdown,omitempty"`
	IdempotencyKey string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// BrandRate is the hourly fee billed to a brand for activation shifts.
type BrandRate struct {
	BrandID         string `json:"brand_id"`
	HourlyRateCents int64  `json:"hourly_rate_cents"`
}

// RepStoreCount pairs a rep with the cardinality of their touched-store set.
type RepStoreCount struct {
	RepID uuid.UUID `json:"rep_id"`
	Count int64     `json:"count"`
}

// DomainEvent is a persisted record of something that happened.
type DomainEvent struct {
	ID          uuid.UUID `json:"id"`
	Topic       string    `json:"topic"`
	AggregateID string    `json:"aggregate_id"`
	Payload     []byte    `json:"payload"`
	OccurredAt  time.Time `json:"occurred_at"`
}

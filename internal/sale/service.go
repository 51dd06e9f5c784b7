package sale

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/greenroute/fieldcrm/internal/common"
	"github.com/greenroute/fieldcrm/internal/comp"
	"github.com/greenroute/fieldcrm/internal/db"
	"github.com/greenroute/fieldcrm/internal/events"
	"github.com/greenroute/fieldcrm/internal/lead"
	"github.com/greenroute/fieldcrm/internal/obs"
	"github.com/greenroute/fieldcrm/internal/points"
)

// Querier is the store access the sale flow needs.
type Querier interface {
	GetLeadByKey(ctx context.Context, nameKey string) (db.Lead, error)
	UpdateLeadStatus(ctx context.Context, id uuid.UUID, status db.LeadStatus) (int64, error)
	SetLeadLicense(ctx context.Context, id uuid.UUID, license string) error
	EnsureRep(ctx context.Context, id uuid.UUID, name string) error
	InsertSale(ctx context.Context, arg db.InsertSaleParams) (db.Sale, error)
	GetSaleByID(ctx context.Context, id uuid.UUID) (db.Sale, error)
	MarkSalePaid(ctx context.Context, id uuid.UUID) (int64, error)
	SalePaymentStatus(ctx context.Context, id uuid.UUID) (db.PaymentStatus, error)
}

// Awarder applies the points side effect of a recorded sale.
type Awarder interface {
	AwardSale(ctx context.Context, repID, saleID uuid.UUID, accountKey string, amountCents comp.Cents, brandIDs []string) (points.Breakdown, error)
}

// Service records sales and drives their one-way payment transitions.
type Service struct {
	Q             Querier
	Points        Awarder
	Bus           *events.Bus
	Log           zerolog.Logger
	CommissionBps int64
	Window        time.Duration
	Now           func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Item is one sale line.
type Item struct {
	BrandID   string `json:"brand_id"`
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	// UnitPriceCents is the per-unit price in cents.
	UnitPriceCents int64 `json:"unit_price_cents"`
}

// RecordInput carries a rep's sale submission.
type RecordInput struct {
	AccountName   string
	AmountCents   comp.Cents
	SaleDate      time.Time
	Items         []Item
	LicenseNumber string
}

// Recorded bundles the stored sale with the points awarded for it. The
// breakdown is nil when the award could not be applied; the ledger
// rebuild path reconciles such gaps.
type Recorded struct {
	Sale      db.Sale           `json:"sale"`
	Points    *points.Breakdown `json:"points,omitempty"`
	LeadID    *uuid.UUID        `json:"lead_id,omitempty"`
	Converted bool              `json:"converted"`
}

// Record validates the submission against the account's claim, stores the
// sale, and applies the downstream effects: commission derivation, the
// points award, lead conversion, and the recorded event. The sale row is
// the primary financial write; a failed side channel is logged, never
// rolled back.
func (s *Service) Record(ctx context.Context, repID uuid.UUID, in RecordInput) (Recorded, error) {
	if s == nil || s.Q == nil {
		return Recorded{}, errors.New("sale service not configured")
	}
	key := lead.NameKey(in.AccountName)
	if key == "" {
		return Recorded{}, common.NewValidationError("account name is required")
	}
	if in.AmountCents <= 0 {
		return Recorded{}, common.NewValidationError("sale amount must be positive")
	}
	saleDate := in.SaleDate
	if saleDate.IsZero() {
		saleDate = s.now()
	}

	claimed, err := s.claimedLead(ctx, key, repID, in.LicenseNumber)
	if err != nil {
		s.count("rejected")
		return Recorded{}, err
	}

	if err := s.Q.EnsureRep(ctx, repID, ""); err != nil {
		s.count("error")
		return Recorded{}, common.NewCollaboratorError("rep lookup failed", err)
	}
	items, err := json.Marshal(in.Items)
	if err != nil {
		return Recorded{}, common.NewValidationError("invalid sale items")
	}
	var leadID *uuid.UUID
	if claimed != nil {
		leadID = &claimed.ID
	}
	stored, err := s.Q.InsertSale(ctx, db.InsertSaleParams{
		ID:              uuid.New(),
		RepID:           repID,
		LeadID:          leadID,
		AccountName:     in.AccountName,
		AccountKey:      key,
		AmountCents:     in.AmountCents,
		SaleDate:        saleDate,
		Items:           items,
		CommissionCents: comp.BpsOf(in.AmountCents, s.CommissionBps),
	})
	if err != nil {
		s.count("error")
		return Recorded{}, common.NewCollaboratorError("sale insert failed", err)
	}
	s.count("ok")

	out := Recorded{Sale: stored, LeadID: leadID}
	out.Points = s.award(ctx, stored, s.brandIDs(in.Items))
	out.Converted = s.convertLead(ctx, claimed, in.LicenseNumber)
	s.emit(ctx, events.TopicSaleRecorded, stored)
	return out, nil
}

// claimedLead enforces the exclusivity claim on the account: a sale into
// a lead locked by another rep is refused while the window is open, and a
// first sale must carry the account license if none is on file yet.
func (s *Service) claimedLead(ctx context.Context, key string, repID uuid.UUID, license string) (*db.Lead, error) {
	existing, err := s.Q.GetLeadByKey(ctx, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, common.NewCollaboratorError("lead lookup failed", err)
	}
	if existing.Status != db.LeadStatusSold &&
		existing.RepID != repID &&
		s.now().Sub(existing.CreatedAt) < s.Window {
		return nil, common.NewConflictError("account is claimed by another rep until the exclusivity window lapses", nil)
	}
	if existing.Status != db.LeadStatusSold && existing.LicenseNumber == nil && license == "" {
		return nil, common.NewValidationError("license number is required on the first sale to this account")
	}
	return &existing, nil
}

func (s *Service) brandIDs(items []Item) []string {
	var brands []string
	for _, item := range items {
		if item.BrandID != "" {
			brands = append(brands, item.BrandID)
		}
	}
	return brands
}

func (s *Service) award(ctx context.Context, stored db.Sale, brandIDs []string) *points.Breakdown {
	if s.Points == nil {
		return nil
	}
	bd, err := s.Points.AwardSale(ctx, stored.RepID, stored.ID, stored.AccountKey, stored.AmountCents, brandIDs)
	if err != nil && !errors.Is(err, points.ErrAlreadyApplied) {
		s.Log.Error().Err(err).Str("sale_id", stored.ID.String()).Msg("points award failed; ledger rebuild will reconcile")
		return nil
	}
	return &bd
}

// convertLead freezes the claim once a sale lands on it: the account is a
// client now and the resolver will reject further leads for the name.
func (s *Service) convertLead(ctx context.Context, claimed *db.Lead, license string) bool {
	if claimed == nil || claimed.Status == db.LeadStatusSold {
		return false
	}
	if license != "" {
		if err := s.Q.SetLeadLicense(ctx, claimed.ID, license); err != nil {
			s.Log.Error().Err(err).Str("lead_id", claimed.ID.String()).Msg("license update failed")
		}
	}
	affected, err := s.Q.UpdateLeadStatus(ctx, claimed.ID, db.LeadStatusSold)
	if err != nil {
		s.Log.Error().Err(err).Str("lead_id", claimed.ID.String()).Msg("lead conversion failed")
		return false
	}
	return affected > 0
}

func (s *Service) emit(ctx context.Context, topic string, sale db.Sale) {
	if s.Bus == nil {
		return
	}
	if _, err := s.Bus.Emit(ctx, topic, sale.ID.String(), sale); err != nil {
		s.Log.Warn().Err(err).Str("sale_id", sale.ID.String()).Msg("sale event not fully delivered")
	}
}

func (s *Service) count(result string) {
	if obs.SalesRecordedTotal != nil {
		obs.SalesRecordedTotal.WithLabelValues(result).Inc()
	}
}

// Get returns a stored sale by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (db.Sale, error) {
	if s == nil || s.Q == nil {
		return db.Sale{}, errors.New("sale service not configured")
	}
	stored, err := s.Q.GetSaleByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Sale{}, common.NewNotFoundError("sale not found")
	}
	if err != nil {
		return db.Sale{}, common.NewCollaboratorError("sale lookup failed", err)
	}
	return stored, nil
}

// Batch mark-paid item results.
const (
	ResultPaid        = "paid"
	ResultAlreadyPaid = "already_paid"
	ResultNotFound    = "not_found"
	ResultError       = "error"
)

// ItemResult reports the outcome of one id in a mark-paid batch.
type ItemResult struct {
	ID     uuid.UUID `json:"id"`
	Result string    `json:"result"`
}

// MarkPaid applies the pending→paid transition to each listed sale.
// Items are independent: a failure leaves earlier transitions in place
// and is reported per id instead of aborting the batch.
func (s *Service) MarkPaid(ctx context.Context, ids []uuid.UUID) ([]ItemResult, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("sale service not configured")
	}
	results := make([]ItemResult, 0, len(ids))
	for _, id := range ids {
		results = append(results, ItemResult{ID: id, Result: s.markOne(ctx, id)})
	}
	return results, nil
}

func (s *Service) markOne(ctx context.Context, id uuid.UUID) string {
	affected, err := s.Q.MarkSalePaid(ctx, id)
	result := ResultPaid
	switch {
	case err != nil:
		s.Log.Error().Err(err).Str("sale_id", id.String()).Msg("mark sale paid failed")
		result = ResultError
	case affected == 0:
		result = ResultNotFound
		if status, statusErr := s.Q.SalePaymentStatus(ctx, id); statusErr == nil && status == db.PaymentPaid {
			result = ResultAlreadyPaid
		}
	default:
		s.emitPaid(ctx, id)
	}
	if obs.MarkPaidTotal != nil {
		obs.MarkPaidTotal.WithLabelValues("sale", result).Inc()
	}
	return result
}

func (s *Service) emitPaid(ctx context.Context, id uuid.UUID) {
	if s.Bus == nil {
		return
	}
	if _, err := s.Bus.Emit(ctx, events.TopicSalePaid, id.String(), map[string]string{"sale_id": id.String()}); err != nil {
		s.Log.Warn().Err(err).Str("sale_id", id.String()).Msg("sale paid event not fully delivered")
	}
}

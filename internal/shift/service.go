package shift

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/greenroute/fieldcrm/internal/common"
	"github.com/greenroute/fieldcrm/internal/comp"
	"github.com/greenroute/fieldcrm/internal/db"
	"github.com/greenroute/fieldcrm/internal/events"
	"github.com/greenroute/fieldcrm/internal/lead"
	"github.com/greenroute/fieldcrm/internal/obs"
)

// Querier is the store access the shift flow needs.
type Querier interface {
	EnsureRep(ctx context.Context, id uuid.UUID, name string) error
	InsertShift(ctx context.Context, arg db.InsertShiftParams) (db.Shift, error)
	GetShiftByID(ctx context.Context, id uuid.UUID) (db.Shift, error)
	MarkShiftPaid(ctx context.Context, id uuid.UUID) (int64, error)
	ShiftPaymentStatus(ctx context.Context, id uuid.UUID) (db.PaymentStatus, error)
	TouchStore(ctx context.Context, repID uuid.UUID, accountKey string) error
	UpsertBrandRate(ctx context.Context, brandID string, hourlyRateCents int64) error
}

// Service records activation shifts with their derived reimbursement and
// brand revenue, and drives the one-way payment transition.
type Service struct {
	Q     Querier
	Rates comp.MileageRates
	Table *RateStore
	Bus   *events.Bus
	Log   zerolog.Logger
}

// RecordInput carries a rep's shift submission. AccountName is optional;
// when present the store counts toward the rep's milestone bonus.
type RecordInput struct {
	BrandID     string
	AccountName string
	Hours       float64
	Miles       float64
	TollCents   comp.Cents
	HasVehicle  bool
}

// Record validates and stores a shift. Reimbursement and the billed brand
// revenue are derived once at write time so the payroll aggregator reads
// settled amounts instead of re-deriving them per scan.
func (s *Service) Record(ctx context.Context, repID uuid.UUID, in RecordInput) (db.Shift, error) {
	if s == nil || s.Q == nil {
		return db.Shift{}, errors.New("shift service not configured")
	}
	if in.BrandID == "" {
		return db.Shift{}, common.NewValidationError("brand id is required")
	}
	if in.Hours <= 0 {
		return db.Shift{}, common.NewValidationError("hours must be positive")
	}
	if err := s.Q.EnsureRep(ctx, repID, ""); err != nil {
		s.count("error")
		return db.Shift{}, common.NewCollaboratorError("rep lookup failed", err)
	}

	params := db.InsertShiftParams{
		ID:                 uuid.New(),
		RepID:              repID,
		BrandID:            in.BrandID,
		Hours:              in.Hours,
		Miles:              in.Miles,
		TollCents:          in.TollCents,
		HasVehicle:         in.HasVehicle,
		ReimbursementCents: comp.Reimbursement(s.Rates, in.Miles, in.TollCents, in.HasVehicle),
		RevenueCents:       comp.ShiftClientRevenue(s.Table.Snapshot(), in.BrandID, in.Hours),
	}
	if key := lead.NameKey(in.AccountName); key != "" {
		params.AccountName = &in.AccountName
		params.AccountKey = &key
	}
	stored, err := s.Q.InsertShift(ctx, params)
	if err != nil {
		s.count("error")
		return db.Shift{}, common.NewCollaboratorError("shift insert failed", err)
	}
	s.count("ok")

	if params.AccountKey != nil {
		if err := s.Q.TouchStore(ctx, repID, *params.AccountKey); err != nil {
			s.Log.Error().Err(err).Str("shift_id", stored.ID.String()).Msg("store touch failed")
		}
	}
	s.emit(ctx, events.TopicShiftRecorded, stored.ID, stored)
	return stored, nil
}

func (s *Service) count(result string) {
	if obs.ShiftsRecordedTotal != nil {
		obs.ShiftsRecordedTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) emit(ctx context.Context, topic string, id uuid.UUID, payload any) {
	if s.Bus == nil {
		return
	}
	if _, err := s.Bus.Emit(ctx, topic, id.String(), payload); err != nil {
		s.Log.Warn().Err(err).Str("shift_id", id.String()).Msg("shift event not fully delivered")
	}
}

// Get returns a stored shift by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (db.Shift, error) {
	if s == nil || s.Q == nil {
		return db.Shift{}, errors.New("shift service not configured")
	}
	stored, err := s.Q.GetShiftByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Shift{}, common.NewNotFoundError("shift not found")
	}
	if err != nil {
		return db.Shift{}, common.NewCollaboratorError("shift lookup failed", err)
	}
	return stored, nil
}

// ItemResult reports the outcome of one id in a mark-paid batch.
type ItemResult struct {
	ID     uuid.UUID `json:"id"`
	Result string    `json:"result"`
}

// Batch mark-paid item results.
const (
	ResultPaid        = "paid"
	ResultAlreadyPaid = "already_paid"
	ResultNotFound    = "not_found"
	ResultError       = "error"
)

// MarkPaid applies the pending→paid transition to each listed shift.
// Each transition is independently idempotent; a failed id is reported,
// earlier transitions stay in place.
func (s *Service) MarkPaid(ctx context.Context, ids []uuid.UUID) ([]ItemResult, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("shift service not configured")
	}
	results := make([]ItemResult, 0, len(ids))
	for _, id := range ids {
		results = append(results, ItemResult{ID: id, Result: s.markOne(ctx, id)})
	}
	return results, nil
}

func (s *Service) markOne(ctx context.Context, id uuid.UUID) string {
	affected, err := s.Q.MarkShiftPaid(ctx, id)
	result := ResultPaid
	switch {
	case err != nil:
		s.Log.Error().Err(err).Str("shift_id", id.String()).Msg("mark shift paid failed")
		result = ResultError
	case affected == 0:
		result = ResultNotFound
		if status, statusErr := s.Q.ShiftPaymentStatus(ctx, id); statusErr == nil && status == db.PaymentPaid {
			result = ResultAlreadyPaid
		}
	default:
		s.emit(ctx, events.TopicShiftPaid, id, map[string]string{"shift_id": id.String()})
	}
	if obs.MarkPaidTotal != nil {
		obs.MarkPaidTotal.WithLabelValues("shift", result).Inc()
	}
	return result
}

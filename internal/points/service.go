package points

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenroute/fieldcrm/internal/comp"
	"github.com/greenroute/fieldcrm/internal/db"
	"github.com/greenroute/fieldcrm/internal/lock"
	"github.com/greenroute/fieldcrm/internal/obs"
)

// Action kinds recorded on ledger entries.
const (
	KindSale = "sale"
	KindLead = "lead"
)

// ErrAlreadyApplied reports that an award with the same idempotency key
// was applied before; callers treat it as success.
var ErrAlreadyApplied = errors.New("points award already applied")

// Service applies point awards as a single logical unit: ledger append,
// counter increment, and brand-history union commit together or not at
// all. The sale id doubles as the idempotency key so a retried award
// detects "already applied" and no-ops.
type Service struct {
	Pool    *pgxpool.Pool
	Q       *db.Queries
	Locker  lock.Locker
	LockTTL time.Duration
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// AwardSale scores a sale against the account's brand history and applies
// the award. The per-account lock serializes concurrent sales into the
// same account so two racing sales cannot both classify a brand as a new
// placement.
func (s *Service) AwardSale(ctx context.Context, repID, saleID uuid.UUID, accountKey string, amountCents comp.Cents, brandIDs []string) (Breakdown, error) {
	if s == nil || s.Pool == nil || s.Q == nil {
		return Breakdown{}, errors.New("points service not configured")
	}
	var bd Breakdown
	apply := func(ctx context.Context) error {
		var err error
		bd, err = s.applySaleAward(ctx, repID, saleID, accountKey, amountCents, brandIDs)
		return err
	}
	var err error
	if s.Locker.R != nil {
		err = s.Locker.WithLock(ctx, "award:"+accountKey, s.LockTTL, apply)
	} else {
		err = apply(ctx)
	}
	result := "ok"
	if err != nil {
		result = "error"
		if errors.Is(err, ErrAlreadyApplied) {
			result = "replay"
		}
	}
	if obs.PointsAwardsTotal != nil {
		obs.PointsAwardsTotal.WithLabelValues(KindSale, result).Inc()
	}
	return bd, err
}

func (s *Service) applySaleAward(ctx context.Context, repID, saleID uuid.UUID, accountKey string, amountCents comp.Cents, brandIDs []string) (Breakdown, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Breakdown{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	qtx := s.Q.WithTx(tx)

	history, err := qtx.GetBrandHistory(ctx, accountKey)
	if err != nil {
		return Breakdown{}, err
	}
	purchased := make(map[string]bool, len(history))
	for _, brand := range history {
		purchased[brand] = true
	}
	bd := OrderPoints(amountCents, brandIDs, purchased)

	breakdown, err := json.Marshal(bd)
	if err != nil {
		return Breakdown{}, err
	}
	inserted, err := qtx.InsertLedgerEntry(ctx, db.InsertLedgerParams{
		RepID:          repID,
		Kind:           KindSale,
		RefID:          saleID.String(),
		PointsMillis:   Millis(bd.TotalPoints),
		Breakdown:      breakdown,
		IdempotencyKey: KindSale + ":" + saleID.String(),
	})
	if err != nil {
		return Breakdown{}, err
	}
	if !inserted {
		return bd, ErrAlreadyApplied
	}
	if err := qtx.AddRepPoints(ctx, repID, Millis(bd.TotalPoints), PeriodKey(s.now())); err != nil {
		return Breakdown{}, err
	}
	if err := qtx.UnionBrandHistory(ctx, accountKey, brandIDs); err != nil {
		return Breakdown{}, err
	}
	if err := qtx.TouchStore(ctx, repID, accountKey); err != nil {
		return Breakdown{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Breakdown{}, err
	}
	return bd, nil
}

// AwardLead applies the flat 1.000-point award for a created lead.
func (s *Service) AwardLead(ctx context.Context, repID, leadID uuid.UUID, accountKey string) error {
	if s == nil || s.Pool == nil || s.Q == nil {
		return errors.New("points service not configured")
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	qtx := s.Q.WithTx(tx)

	inserted, err := qtx.InsertLedgerEntry(ctx, db.InsertLedgerParams{
		RepID:          repID,
		Kind:           KindLead,
		RefID:          leadID.String(),
		PointsMillis:   Millis(LeadPoints()),
		IdempotencyKey: KindLead + ":" + leadID.String(),
	})
	if err != nil {
		return err
	}
	if !inserted {
		return ErrAlreadyApplied
	}
	if err := qtx.AddRepPoints(ctx, repID, Millis(LeadPoints()), PeriodKey(s.now())); err != nil {
		return err
	}
	if err := qtx.TouchStore(ctx, repID, accountKey); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if obs.PointsAwardsTotal != nil {
		obs.PointsAwardsTotal.WithLabelValues(KindLead, "ok").Inc()
	}
	return nil
}

// RebuildQuerier is the database access needed by counter reconciliation.
type RebuildQuerier interface {
	GetRep(ctx context.Context, id uuid.UUID) (db.Rep, error)
	SumLedgerForRep(ctx context.Context, repID uuid.UUID) (int64, error)
	SumLedgerForRepSince(ctx context.Context, repID uuid.UUID, since time.Time) (int64, error)
	SetRepPoints(ctx context.Context, repID uuid.UUID, lifetimeMillis, periodMillis int64, periodKey string) error
}

// Rebuild recomputes a rep's cached counters from the ledger. The ledger
// is the source of truth; this is the repair path when the projections
// drift.
func Rebuild(ctx context.Context, q RebuildQuerier, repID uuid.UUID, now time.Time) (db.Rep, error) {
	lifetime, err := q.SumLedgerForRep(ctx, repID)
	if err != nil {
		return db.Rep{}, err
	}
	period, err := q.SumLedgerForRepSince(ctx, repID, PeriodStart(now))
	if err != nil {
		return db.Rep{}, err
	}
	if err := q.SetRepPoints(ctx, repID, lifetime, period, PeriodKey(now)); err != nil {
		return db.Rep{}, err
	}
	if obs.LedgerRebuildTotal != nil {
		obs.LedgerRebuildTotal.Inc()
	}
	return q.GetRep(ctx, repID)
}

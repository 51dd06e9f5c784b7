package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenroute/fieldcrm/internal/common"
	"github.com/greenroute/fieldcrm/internal/comp"
	"github.com/greenroute/fieldcrm/internal/db"
	"github.com/greenroute/fieldcrm/internal/obs"
)

// Querier is the read-only store access the aggregator needs.
type Querier interface {
	ListSalesInRange(ctx context.Context, from, to time.Time) ([]db.Sale, error)
	ListShiftsInRange(ctx context.Context, from, to time.Time) ([]db.Shift, error)
	ListRepStoreCounts(ctx context.Context) ([]db.RepStoreCount, error)
}

// Service is the compensation aggregator. It only reads and sums: no
// sale, shift, or lead record is ever mutated by a scan.
type Service struct {
	Q               Querier
	Cache           *Cache
	Log             zerolog.Logger
	HourlyRateCents comp.Cents
	CommissionBps   int64
	SalesRevenueBps int64
	Bonuses         comp.BonusSchedule
	WindowDays      int
	Now             func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Summary is the company-level financial roll-up over a window. All
// amounts are cents. SalesNet and ActivationNet are reporting views;
// they do not sum to CompanyNet because bonuses are company-wide
// overhead attributable to neither stream.
type Summary struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	WagesCents             comp.Cents `json:"wages_cents"`
	ReimbursementsCents    comp.Cents `json:"reimbursements_cents"`
	WagesAndExpensesCents  comp.Cents `json:"wages_and_expenses_cents"`
	RepCommissionCents     comp.Cents `json:"rep_commission_cents"`
	SalesRevenueCents      comp.Cents `json:"sales_revenue_cents"`
	ActivationRevenueCents comp.Cents `json:"activation_revenue_cents"`
	TotalBonusesCents      comp.Cents `json:"total_bonuses_cents"`
	CompanyNetCents        comp.Cents `json:"company_net_cents"`

	SalesNetCents      comp.Cents `json:"sales_net_cents"`
	ActivationNetCents comp.Cents `json:"activation_net_cents"`

	SaleCount  int `json:"sale_count"`
	ShiftCount int `json:"shift_count"`
}

// Window returns the default reporting window ending now.
func (s *Service) Window() (time.Time, time.Time) {
	to := s.now()
	days := s.WindowDays
	if days <= 0 {
		days = 14
	}
	return to.AddDate(0, 0, -days), to
}

// Summarize scans all sales and shifts in [from, to) and produces the
// company roll-up. Results for a given window are cached; the underlying
// records are append-only within a closed window so staleness is bounded
// by the cache TTL.
func (s *Service) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	if s == nil || s.Q == nil {
		return Summary{}, errors.New("payroll service not configured")
	}
	if !to.After(from) {
		return Summary{}, common.NewValidationError("window end must be after window start")
	}

	key := cacheKey(from, to)
	var cached Summary
	if hit, err := s.Cache.GetJSON(ctx, key, &cached); err != nil {
		s.Log.Warn().Err(err).Msg("payroll cache read failed")
	} else if hit {
		return cached, nil
	}

	started := time.Now()
	summary, err := s.scan(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}
	if obs.PayrollSummaryDuration != nil {
		obs.PayrollSummaryDuration.Observe(obs.DurationMillis(time.Since(started)))
	}

	if err := s.Cache.SetJSON(ctx, key, summary); err != nil {
		s.Log.Warn().Err(err).Msg("payroll cache write failed")
	}
	return summary, nil
}

func (s *Service) scan(ctx context.Context, from, to time.Time) (Summary, error) {
	sales, err := s.Q.ListSalesInRange(ctx, from, to)
	if err != nil {
		return Summary{}, common.NewCollaboratorError("sales scan failed", err)
	}
	shifts, err := s.Q.ListShiftsInRange(ctx, from, to)
	if err != nil {
		return Summary{}, common.NewCollaboratorError("shifts scan failed", err)
	}
	counts, err := s.Q.ListRepStoreCounts(ctx)
	if err != nil {
		return Summary{}, common.NewCollaboratorError("store count scan failed", err)
	}

	summary := Summary{From: from, To: to, SaleCount: len(sales), ShiftCount: len(shifts)}

	for _, sale := range sales {
		summary.RepCommissionCents += comp.BpsOf(sale.AmountCents, s.CommissionBps)
		summary.SalesRevenueCents += comp.BpsOf(sale.AmountCents, s.SalesRevenueBps)
	}
	for _, shift := range shifts {
		summary.WagesCents += comp.HourlyWage(s.HourlyRateCents, shift.Hours)
		summary.ReimbursementsCents += shift.ReimbursementCents
		summary.ActivationRevenueCents += shift.RevenueCents
	}
	summary.WagesAndExpensesCents = summary.WagesCents + summary.ReimbursementsCents

	// Bonuses are recomputed from the current all-time store counts, not
	// accumulated from deltas, so a repeated scan never double-pays.
	for _, rc := range counts {
		summary.TotalBonusesCents += s.Bonuses.LifetimeBonus(int(rc.Count))
	}

	summary.CompanyNetCents = (summary.ActivationRevenueCents + summary.SalesRevenueCents) -
		(summary.WagesAndExpensesCents + summary.RepCommissionCents + summary.TotalBonusesCents)
	summary.SalesNetCents = summary.SalesRevenueCents - summary.RepCommissionCents
	summary.ActivationNetCents = summary.ActivationRevenueCents - summary.WagesAndExpensesCents
	return summary, nil
}

func cacheKey(from, to time.Time) string {
	return fmt.Sprintf("payroll:summary:%d:%d", from.Unix(), to.Unix())
}

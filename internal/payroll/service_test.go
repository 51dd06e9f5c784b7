package payroll

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/greenroute/fieldcrm/internal/comp"
	"github.com/greenroute/fieldcrm/internal/db"
)

type stubPayrollQueries struct {
	sales     []db.Sale
	shifts    []db.Shift
	counts    []db.RepStoreCount
	saleScans int
}

func (s *stubPayrollQueries) ListSalesInRange(_ context.Context, from, to time.Time) ([]db.Sale, error) {
	s.saleScans++
	var out []db.Sale
	for _, sale := range s.sales {
		if !sale.SaleDate.Before(from) && sale.SaleDate.Before(to) {
			out = append(out, sale)
		}
	}
	return out, nil
}

func (s *stubPayrollQueries) ListShiftsInRange(_ context.Context, _, _ time.Time) ([]db.Shift, error) {
	return s.shifts, nil
}

func (s *stubPayrollQueries) ListRepStoreCounts(_ context.Context) ([]db.RepStoreCount, error) {
	return s.counts, nil
}

func mustSchedule(t *testing.T) comp.BonusSchedule {
	t.Helper()
	schedule, err := comp.ParseBonusSchedule("10:25000,25:75000,50:200000,100:500000")
	if err != nil {
		t.Fatalf("parse schedule: %v", err)
	}
	return schedule
}

func newTestService(t *testing.T, q Querier, cache *Cache) *Service {
	t.Helper()
	return &Service{
		Q:               q,
		Cache:           cache,
		Log:             zerolog.Nop(),
		HourlyRateCents: 2_000,
		CommissionBps:   200,
		SalesRevenueBps: 500,
		Bonuses:         mustSchedule(t),
		WindowDays:      14,
		Now:             func() time.Time { return time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC) },
	}
}

func TestSummaryArithmetic(t *testing.T) {
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	q := &stubPayrollQueries{
		sales: []db.Sale{
			{ID: uuid.New(), AmountCents: 100_000, SaleDate: day}, // $1,000
		},
		shifts: []db.Shift{
			// 10 h at $20/h, $38.50 reimbursement, $300 billed to the brand.
			{ID: uuid.New(), Hours: 10, ReimbursementCents: 3_850, RevenueCents: 30_000},
		},
	}
	svc := newTestService(t, q, nil)
	from, to := svc.Window()

	summary, err := svc.Summarize(context.Background(), from, to)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.WagesCents != 20_000 {
		t.Errorf("wages = %d, want 20000", summary.WagesCents)
	}
	if summary.WagesAndExpensesCents != 23_850 {
		t.Errorf("wages and expenses = %d, want 23850", summary.WagesAndExpensesCents)
	}
	if summary.RepCommissionCents != 2_000 {
		t.Errorf("commission = %d, want 2000 (2%% of $1,000)", summary.RepCommissionCents)
	}
	if summary.SalesRevenueCents != 5_000 {
		t.Errorf("sales revenue = %d, want 5000 (5%% of $1,000)", summary.SalesRevenueCents)
	}
	if summary.ActivationRevenueCents != 30_000 {
		t.Errorf("activation revenue = %d, want 30000", summary.ActivationRevenueCents)
	}
	wantNet := (30_000 + 5_000) - (23_850 + 2_000 + 0)
	if summary.CompanyNetCents != int64(wantNet) {
		t.Errorf("company net = %d, want %d", summary.CompanyNetCents, wantNet)
	}
}

func TestSummarySubNetsAreNotCompanyNet(t *testing.T) {
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	q := &stubPayrollQueries{
		sales:  []db.Sale{{ID: uuid.New(), AmountCents: 100_000, SaleDate: day}},
		shifts: []db.Shift{{ID: uuid.New(), Hours: 10, ReimbursementCents: 3_850, RevenueCents: 30_000}},
		counts: []db.RepStoreCount{{RepID: uuid.New(), Count: 12}},
	}
	svc := newTestService(t, q, nil)
	from, to := svc.Window()

	summary, err := svc.Summarize(context.Background(), from, to)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.TotalBonusesCents != 25_000 {
		t.Fatalf("bonuses = %d, want 25000 for 12 stores", summary.TotalBonusesCents)
	}
	if summary.SalesNetCents != summary.SalesRevenueCents-summary.RepCommissionCents {
		t.Fatal("sales net must be sales revenue minus commission")
	}
	if summary.ActivationNetCents != summary.ActivationRevenueCents-summary.WagesAndExpensesCents {
		t.Fatal("activation net must be activation revenue minus wages and expenses")
	}
	// Bonuses belong to neither stream: the sub-nets overshoot the
	// company net by exactly the bonus total.
	if summary.SalesNetCents+summary.ActivationNetCents != summary.CompanyNetCents+summary.TotalBonusesCents {
		t.Fatal("sub-nets plus bonuses must reconcile with company net")
	}
}

func TestSummaryWindowFiltersSales(t *testing.T) {
	q := &stubPayrollQueries{
		sales: []db.Sale{
			{ID: uuid.New(), AmountCents: 100_000, SaleDate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
			{ID: uuid.New(), AmountCents: 900_000, SaleDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
	svc := newTestService(t, q, nil)
	from, to := svc.Window()
	if got := to.Sub(from); got != 14*24*time.Hour {
		t.Fatalf("default window = %v, want 14 days", got)
	}

	summary, err := svc.Summarize(context.Background(), from, to)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.SaleCount != 1 {
		t.Fatalf("sale count = %d, want only the in-window sale", summary.SaleCount)
	}
	if summary.SalesRevenueCents != 5_000 {
		t.Fatalf("sales revenue = %d, want 5000", summary.SalesRevenueCents)
	}
}

func TestSummaryUsesCache(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	day := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	q := &stubPayrollQueries{sales: []db.Sale{{ID: uuid.New(), AmountCents: 100_000, SaleDate: day}}}
	svc := newTestService(t, q, NewCache(client, time.Minute))
	from, to := svc.Window()

	first, err := svc.Summarize(context.Background(), from, to)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	second, err := svc.Summarize(context.Background(), from, to)
	if err != nil {
		t.Fatalf("summarize cached: %v", err)
	}
	if q.saleScans != 1 {
		t.Fatalf("sale scans = %d, want 1 (second call served from cache)", q.saleScans)
	}
	if first.SalesRevenueCents != second.SalesRevenueCents || !first.From.Equal(second.From) {
		t.Fatal("cached summary must match the computed one")
	}
}

func TestSummaryRejectsInvertedWindow(t *testing.T) {
	svc := newTestService(t, &stubPayrollQueries{}, nil)
	now := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	if _, err := svc.Summarize(context.Background(), now, now.Add(-time.Hour)); err == nil {
		t.Fatal("expected validation error for inverted window")
	}
}

func TestSummaryUnconfigured(t *testing.T) {
	var svc *Service
	if _, err := svc.Summarize(context.Background(), time.Time{}, time.Now()); err == nil {
		t.Fatal("expected error for unconfigured service")
	}
}

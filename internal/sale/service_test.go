package sale

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/greenroute/fieldcrm/internal/common"
	"github.com/greenroute/fieldcrm/internal/comp"
	"github.com/greenroute/fieldcrm/internal/db"
	"github.com/greenroute/fieldcrm/internal/points"
)

type stubSaleQueries struct {
	leadsByKey map[string]db.Lead
	sales      map[uuid.UUID]db.Sale
	licenses   map[uuid.UUID]string
	statuses   map[uuid.UUID]db.LeadStatus
	insertErr  error
}

func newStubSaleQueries() *stubSaleQueries {
	return &stubSaleQueries{
		leadsByKey: map[string]db.Lead{},
		sales:      map[uuid.UUID]db.Sale{},
		licenses:   map[uuid.UUID]string{},
		statuses:   map[uuid.UUID]db.LeadStatus{},
	}
}

func (s *stubSaleQueries) GetLeadByKey(_ context.Context, nameKey string) (db.Lead, error) {
	if l, ok := s.leadsByKey[nameKey]; ok {
		return l, nil
	}
	return db.Lead{}, pgx.ErrNoRows
}

func (s *stubSaleQueries) UpdateLeadStatus(_ context.Context, id uuid.UUID, status db.LeadStatus) (int64, error) {
	s.statuses[id] = status
	return 1, nil
}

func (s *stubSaleQueries) SetLeadLicense(_ context.Context, id uuid.UUID, license string) error {
	s.licenses[id] = license
	return nil
}

func (s *stubSaleQueries) EnsureRep(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

func (s *stubSaleQueries) InsertSale(_ context.Context, arg db.InsertSaleParams) (db.Sale, error) {
	if s.insertErr != nil {
		return db.Sale{}, s.insertErr
	}
	sale := db.Sale{
		ID:              arg.ID,
		RepID:           arg.RepID,
		LeadID:          arg.LeadID,
		AccountName:     arg.AccountName,
		AccountKey:      arg.AccountKey,
		AmountCents:     arg.AmountCents,
		SaleDate:        arg.SaleDate,
		Items:           arg.Items,
		PaymentStatus:   db.PaymentPending,
		CommissionCents: arg.CommissionCents,
	}
	s.sales[sale.ID] = sale
	return sale, nil
}

func (s *stubSaleQueries) GetSaleByID(_ context.Context, id uuid.UUID) (db.Sale, error) {
	sale, ok := s.sales[id]
	if !ok {
		return db.Sale{}, pgx.ErrNoRows
	}
	return sale, nil
}

func (s *stubSaleQueries) MarkSalePaid(_ context.Context, id uuid.UUID) (int64, error) {
	sale, ok := s.sales[id]
	if !ok || sale.PaymentStatus == db.PaymentPaid {
		return 0, nil
	}
	sale.PaymentStatus = db.PaymentPaid
	s.sales[id] = sale
	return 1, nil
}

func (s *stubSaleQueries) SalePaymentStatus(_ context.Context, id uuid.UUID) (db.PaymentStatus, error) {
	sale, ok := s.sales[id]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return sale.PaymentStatus, nil
}

type stubAwarder struct {
	calls int
	bd    points.Breakdown
	err   error
}

func (a *stubAwarder) AwardSale(_ context.Context, _, _ uuid.UUID, _ string, _ comp.Cents, _ []string) (points.Breakdown, error) {
	a.calls++
	return a.bd, a.err
}

func newTestService(q Querier, awarder Awarder) *Service {
	return &Service{
		Q:             q,
		Points:        awarder,
		Log:           zerolog.Nop(),
		CommissionBps: 200,
		Window:        45 * 24 * time.Hour,
		Now:           func() time.Time { return time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC) },
	}
}

func TestRecordDerivesCommission(t *testing.T) {
	q := newStubSaleQueries()
	awarder := &stubAwarder{}
	svc := newTestService(q, awarder)

	recorded, err := svc.Record(context.Background(), uuid.New(), RecordInput{
		AccountName: "Green Leaf",
		AmountCents: 100_000, // $1,000.00
		Items:       []Item{{BrandID: "brand-a", Quantity: 2, UnitPriceCents: 50_000}},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if recorded.Sale.CommissionCents != 2_000 {
		t.Fatalf("commission = %d cents, want 2000 (2%% of $1,000)", recorded.Sale.CommissionCents)
	}
	if recorded.Sale.AccountKey != "green leaf" {
		t.Fatalf("account key = %q, want normalized", recorded.Sale.AccountKey)
	}
	if awarder.calls != 1 {
		t.Fatalf("award calls = %d, want 1", awarder.calls)
	}
}

func TestRecordValidation(t *testing.T) {
	svc := newTestService(newStubSaleQueries(), nil)
	var app *common.AppError

	_, err := svc.Record(context.Background(), uuid.New(), RecordInput{AccountName: " ", AmountCents: 100})
	if !errors.As(err, &app) || app.Code != common.CodeValidation {
		t.Fatalf("empty name: expected validation error, got %v", err)
	}
	_, err = svc.Record(context.Background(), uuid.New(), RecordInput{AccountName: "Green Leaf", AmountCents: 0})
	if !errors.As(err, &app) || app.Code != common.CodeValidation {
		t.Fatalf("zero amount: expected validation error, got %v", err)
	}
}

func TestRecordRejectsSaleIntoLockedClaim(t *testing.T) {
	owner := uuid.New()
	q := newStubSaleQueries()
	q.leadsByKey["green leaf"] = db.Lead{
		ID:        uuid.New(),
		NameKey:   "green leaf",
		RepID:     owner,
		Status:    db.LeadStatusProspect,
		CreatedAt: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	}
	svc := newTestService(q, nil)

	_, err := svc.Record(context.Background(), uuid.New(), RecordInput{
		AccountName:   "Green Leaf",
		AmountCents:   5_000,
		LicenseNumber: "LIC-1",
	})
	var app *common.AppError
	if !errors.As(err, &app) || app.Code != common.CodeConflict {
		t.Fatalf("expected conflict for locked claim, got %v", err)
	}
	if len(q.sales) != 0 {
		t.Fatal("no sale may be stored for a locked account")
	}
}

func TestRecordOpenPoolClaimByAnyRep(t *testing.T) {
	owner := uuid.New()
	claimant := uuid.New()
	leadID := uuid.New()
	license := "LIC-77"
	q := newStubSaleQueries()
	q.leadsByKey["green leaf"] = db.Lead{
		ID:            leadID,
		NameKey:       "green leaf",
		RepID:         owner,
		Status:        db.LeadStatusProspect,
		LicenseNumber: &license,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	svc := newTestService(q, &stubAwarder{})

	recorded, err := svc.Record(context.Background(), claimant, RecordInput{
		AccountName: "Green Leaf",
		AmountCents: 5_000,
	})
	if err != nil {
		t.Fatalf("open pool claim: %v", err)
	}
	if recorded.LeadID == nil || *recorded.LeadID != leadID {
		t.Fatal("sale should attach to the existing lead")
	}
	if !recorded.Converted {
		t.Fatal("open pool claim should convert the lead")
	}
	if q.statuses[leadID] != db.LeadStatusSold {
		t.Fatalf("lead status = %s, want sold", q.statuses[leadID])
	}
}

func TestRecordFirstSaleRequiresLicense(t *testing.T) {
	owner := uuid.New()
	leadID := uuid.New()
	q := newStubSaleQueries()
	q.leadsByKey["green leaf"] = db.Lead{
		ID:        leadID,
		NameKey:   "green leaf",
		RepID:     owner,
		Status:    db.LeadStatusProspect,
		CreatedAt: time.Date(2026, 3, 19, 0, 0, 0, 0, time.UTC),
	}
	svc := newTestService(q, &stubAwarder{})

	_, err := svc.Record(context.Background(), owner, RecordInput{AccountName: "Green Leaf", AmountCents: 5_000})
	var app *common.AppError
	if !errors.As(err, &app) || app.Code != common.CodeValidation {
		t.Fatalf("expected license validation error, got %v", err)
	}

	recorded, err := svc.Record(context.Background(), owner, RecordInput{
		AccountName:   "Green Leaf",
		AmountCents:   5_000,
		LicenseNumber: "LIC-42",
	})
	if err != nil {
		t.Fatalf("record with license: %v", err)
	}
	if q.licenses[leadID] != "LIC-42" {
		t.Fatalf("license = %q, want LIC-42", q.licenses[leadID])
	}
	if !recorded.Converted {
		t.Fatal("first sale should convert the claim")
	}
}

func TestRecordAwardFailureDoesNotFailSale(t *testing.T) {
	q := newStubSaleQueries()
	svc := newTestService(q, &stubAwarder{err: errors.New("redis down")})

	recorded, err := svc.Record(context.Background(), uuid.New(), RecordInput{
		AccountName: "Green Leaf",
		AmountCents: 5_000,
	})
	if err != nil {
		t.Fatalf("sale must survive award failure: %v", err)
	}
	if recorded.Points != nil {
		t.Fatal("breakdown must be absent when the award failed")
	}
	if len(q.sales) != 1 {
		t.Fatal("sale must be stored")
	}
}

func TestMarkPaidBatchIsPerItem(t *testing.T) {
	q := newStubSaleQueries()
	svc := newTestService(q, nil)
	rep := uuid.New()

	first, err := svc.Record(context.Background(), rep, RecordInput{AccountName: "A Store", AmountCents: 1_000})
	if err != nil {
		t.Fatalf("seed sale: %v", err)
	}
	second, err := svc.Record(context.Background(), rep, RecordInput{AccountName: "B Store", AmountCents: 2_000})
	if err != nil {
		t.Fatalf("seed sale: %v", err)
	}
	missing := uuid.New()

	results, err := svc.MarkPaid(context.Background(), []uuid.UUID{first.Sale.ID, second.Sale.ID, missing})
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	want := map[uuid.UUID]string{first.Sale.ID: ResultPaid, second.Sale.ID: ResultPaid, missing: ResultNotFound}
	for _, res := range results {
		if res.Result != want[res.ID] {
			t.Errorf("id %s: result = %s, want %s", res.ID, res.Result, want[res.ID])
		}
	}

	// Replaying the batch reports already_paid rather than re-transitioning.
	results, err = svc.MarkPaid(context.Background(), []uuid.UUID{first.Sale.ID})
	if err != nil {
		t.Fatalf("mark paid replay: %v", err)
	}
	if results[0].Result != ResultAlreadyPaid {
		t.Fatalf("replay result = %s, want %s", results[0].Result, ResultAlreadyPaid)
	}
}

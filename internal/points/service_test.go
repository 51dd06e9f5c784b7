package points

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/greenroute/fieldcrm/internal/db"
)

type stubRebuildQueries struct {
	lifetime int64
	period   int64

	setLifetime int64
	setPeriod   int64
	setKey      string
}

func (s *stubRebuildQueries) GetRep(_ context.Context, id uuid.UUID) (db.Rep, error) {
	return db.Rep{
		ID:                   id,
		LifetimePointsMillis: s.setLifetime,
		PeriodPointsMillis:   s.setPeriod,
		PeriodKey:            s.setKey,
	}, nil
}

func (s *stubRebuildQueries) SumLedgerForRep(context.Context, uuid.UUID) (int64, error) {
	return s.lifetime, nil
}

func (s *stubRebuildQueries) SumLedgerForRepSince(context.Context, uuid.UUID, time.Time) (int64, error) {
	return s.period, nil
}

func (s *stubRebuildQueries) SetRepPoints(_ context.Context, _ uuid.UUID, lifetimeMillis, periodMillis int64, periodKey string) error {
	s.setLifetime = lifetimeMillis
	s.setPeriod = periodMillis
	s.setKey = periodKey
	return nil
}

func TestRebuildRestoresCountersFromLedger(t *testing.T) {
	stub := &stubRebuildQueries{lifetime: 12500, period: 4000}
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

	rep, err := Rebuild(context.Background(), stub, uuid.New(), now)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if rep.LifetimePointsMillis != 12500 {
		t.Fatalf("expected lifetime 12500 millis, got %d", rep.LifetimePointsMillis)
	}
	if rep.PeriodPointsMillis != 4000 {
		t.Fatalf("expected period 4000 millis, got %d", rep.PeriodPointsMillis)
	}
	if rep.PeriodKey != "2025-06" {
		t.Fatalf("expected period key 2025-06, got %q", rep.PeriodKey)
	}
}

func TestAwardSaleRequiresConfiguration(t *testing.T) {
	var svc *Service
	if _, err := svc.AwardSale(context.Background(), uuid.New(), uuid.New(), "k", 100, nil); err == nil {
		t.Fatal("expected error from unconfigured service")
	}
	empty := &Service{}
	if _, err := empty.AwardSale(context.Background(), uuid.New(), uuid.New(), "k", 100, nil); err == nil {
		t.Fatal("expected error from unconfigured service")
	}
}

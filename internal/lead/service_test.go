package lead

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/greenroute/fieldcrm/internal/common"
	"github.com/greenroute/fieldcrm/internal/db"
)

type stubLeadQueries struct {
	byKey    map[string]db.Lead
	byID     map[uuid.UUID]db.Lead
	inserted []db.InsertLeadParams
	// raceWinner, when set, simulates losing the insert race: the insert
	// reports inserted=false and returns this surviving row.
	raceWinner *db.Lead
	statusSets []db.LeadStatus
	forced     []db.LeadStatus
}

func newStubLeadQueries() *stubLeadQueries {
	return &stubLeadQueries{byKey: map[string]db.Lead{}, byID: map[uuid.UUID]db.Lead{}}
}

func (s *stubLeadQueries) add(l db.Lead) {
	s.byKey[l.NameKey] = l
	s.byID[l.ID] = l
}

func (s *stubLeadQueries) GetLeadByKey(_ context.Context, nameKey string) (db.Lead, error) {
	if l, ok := s.byKey[nameKey]; ok {
		return l, nil
	}
	return db.Lead{}, pgx.ErrNoRows
}

func (s *stubLeadQueries) GetLeadByID(_ context.Context, id uuid.UUID) (db.Lead, error) {
	if l, ok := s.byID[id]; ok {
		return l, nil
	}
	return db.Lead{}, pgx.ErrNoRows
}

func (s *stubLeadQueries) InsertLeadIfAbsent(_ context.Context, arg db.InsertLeadParams) (db.Lead, bool, error) {
	if s.raceWinner != nil {
		return *s.raceWinner, false, nil
	}
	s.inserted = append(s.inserted, arg)
	l := db.Lead{
		ID:           uuid.New(),
		Name:         arg.Name,
		NameKey:      arg.NameKey,
		RepID:        arg.RepID,
		Status:       db.LeadStatusProspect,
		Priority:     arg.Priority,
		Contacts:     arg.Contacts,
		SampleBrands: arg.SampleBrands,
		CreatedAt:    time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC),
	}
	s.add(l)
	return l, true, nil
}

func (s *stubLeadQueries) ListLeads(_ context.Context, limit, offset int32) ([]db.Lead, error) {
	var out []db.Lead
	for _, l := range s.byID {
		out = append(out, l)
	}
	return out, nil
}

func (s *stubLeadQueries) CountLeads(_ context.Context) (int64, error) {
	return int64(len(s.byID)), nil
}

func (s *stubLeadQueries) UpdateLeadStatus(_ context.Context, id uuid.UUID, status db.LeadStatus) (int64, error) {
	l, ok := s.byID[id]
	if !ok || l.Status == db.LeadStatusSold {
		return 0, nil
	}
	l.Status = status
	s.add(l)
	s.statusSets = append(s.statusSets, status)
	return 1, nil
}

func (s *stubLeadQueries) ForceLeadStatus(_ context.Context, id uuid.UUID, status db.LeadStatus) (int64, error) {
	l, ok := s.byID[id]
	if !ok {
		return 0, nil
	}
	l.Status = status
	s.add(l)
	s.forced = append(s.forced, status)
	return 1, nil
}

func (s *stubLeadQueries) EnsureRep(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

func newTestService(q Querier) *Service {
	return &Service{
		Q:      q,
		Log:    zerolog.Nop(),
		Window: 45 * 24 * time.Hour,
		Now:    func() time.Time { return time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC) },
	}
}

func TestResolveCreatesUnclaimedName(t *testing.T) {
	q := newStubLeadQueries()
	svc := newTestService(q)
	rep := uuid.New()

	res, err := svc.Resolve(context.Background(), rep, ResolveInput{Name: "  Green  Leaf "})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Outcome != OutcomeCreate {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeCreate)
	}
	if len(q.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(q.inserted))
	}
	if q.inserted[0].NameKey != "green leaf" {
		t.Fatalf("name key = %q, want normalized key", q.inserted[0].NameKey)
	}
	if q.inserted[0].Name != "  Green  Leaf " {
		t.Fatal("display name should be stored as submitted")
	}
}

func TestResolveEmptyNameIsValidationError(t *testing.T) {
	svc := newTestService(newStubLeadQueries())
	_, err := svc.Resolve(context.Background(), uuid.New(), ResolveInput{Name: "   "})
	var app *common.AppError
	if !errors.As(err, &app) || app.Code != common.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveExistingClaimsClassified(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		createdAt time.Time
		status    db.LeadStatus
		requester uuid.UUID
		want      Outcome
	}{
		{"owner inside window", now.Add(-10 * 24 * time.Hour), db.LeadStatusProspect, owner, OutcomeRedirectToSale},
		{"other rep inside window", now.Add(-10 * 24 * time.Hour), db.LeadStatusProspect, other, OutcomeRejectLocked},
		{"expired window any rep", now.Add(-46 * 24 * time.Hour), db.LeadStatusProspect, other, OutcomeRedirectToSale},
		{"sold account", now.Add(-10 * 24 * time.Hour), db.LeadStatusSold, owner, OutcomeRejectSold},
	}
	for _, tc := range cases {
		q := newStubLeadQueries()
		q.add(db.Lead{ID: uuid.New(), NameKey: "green leaf", RepID: owner, Status: tc.status, CreatedAt: tc.createdAt})
		svc := newTestService(q)

		res, err := svc.Resolve(context.Background(), tc.requester, ResolveInput{Name: "Green Leaf"})
		if err != nil {
			t.Fatalf("%s: resolve: %v", tc.name, err)
		}
		if res.Outcome != tc.want {
			t.Errorf("%s: outcome = %s, want %s", tc.name, res.Outcome, tc.want)
		}
		if len(q.inserted) != 0 {
			t.Errorf("%s: no insert expected for existing claim", tc.name)
		}
	}
}

func TestResolveLostRaceClassifiesWinner(t *testing.T) {
	owner := uuid.New()
	loser := uuid.New()
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	q := newStubLeadQueries()
	winner := db.Lead{ID: uuid.New(), NameKey: "green leaf", RepID: owner, Status: db.LeadStatusProspect, CreatedAt: now}
	q.raceWinner = &winner

	svc := newTestService(q)
	res, err := svc.Resolve(context.Background(), loser, ResolveInput{Name: "Green Leaf"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Outcome != OutcomeRejectLocked {
		t.Fatalf("race loser outcome = %s, want %s", res.Outcome, OutcomeRejectLocked)
	}
	if res.Lead.ID != winner.ID {
		t.Fatal("race loser should be handed the surviving record")
	}
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	q := newStubLeadQueries()
	l := db.Lead{ID: uuid.New(), NameKey: "green leaf", RepID: uuid.New(), Status: db.LeadStatusSamplesDelivered}
	q.add(l)
	svc := newTestService(q)

	if _, err := svc.UpdateStatus(context.Background(), l.ID, db.LeadStatusProspect, false); err == nil {
		t.Fatal("expected conflict moving status backwards")
	}
	got, err := svc.UpdateStatus(context.Background(), l.ID, db.LeadStatusActive, false)
	if err != nil {
		t.Fatalf("forward transition: %v", err)
	}
	if got.Status != db.LeadStatusActive {
		t.Fatalf("status = %s, want active", got.Status)
	}
}

func TestUpdateStatusSoldIsImmutableWithoutOverride(t *testing.T) {
	q := newStubLeadQueries()
	l := db.Lead{ID: uuid.New(), NameKey: "green leaf", RepID: uuid.New(), Status: db.LeadStatusSold}
	q.add(l)
	svc := newTestService(q)

	_, err := svc.UpdateStatus(context.Background(), l.ID, db.LeadStatusActive, false)
	var app *common.AppError
	if !errors.As(err, &app) || app.Code != common.CodeConflict {
		t.Fatalf("expected conflict for sold lead, got %v", err)
	}

	got, err := svc.UpdateStatus(context.Background(), l.ID, db.LeadStatusActive, true)
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if got.Status != db.LeadStatusActive {
		t.Fatalf("override status = %s, want active", got.Status)
	}
	if len(q.forced) != 1 {
		t.Fatal("override must go through the force path")
	}
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	svc := newTestService(newStubLeadQueries())
	_, err := svc.UpdateStatus(context.Background(), uuid.New(), db.LeadStatus("archived"), false)
	var app *common.AppError
	if !errors.As(err, &app) || app.Code != common.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

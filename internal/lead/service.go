package lead

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/greenroute/fieldcrm/internal/common"
	"github.com/greenroute/fieldcrm/internal/db"
	"github.com/greenroute/fieldcrm/internal/events"
	"github.com/greenroute/fieldcrm/internal/obs"
	"github.com/greenroute/fieldcrm/internal/points"
)

// statusRank encodes the forward-only lifecycle. A transition to a lower
// rank is refused unless the caller asks for an explicit override.
var statusRank = map[db.LeadStatus]int{
	db.LeadStatusProspect:         0,
	db.LeadStatusSamplesRequested: 1,
	db.LeadStatusSamplesDelivered: 2,
	db.LeadStatusActive:           3,
	db.LeadStatusSold:             4,
}

// Querier is the store access the exclusivity engine needs.
type Querier interface {
	GetLeadByKey(ctx context.Context, nameKey string) (db.Lead, error)
	GetLeadByID(ctx context.Context, id uuid.UUID) (db.Lead, error)
	InsertLeadIfAbsent(ctx context.Context, arg db.InsertLeadParams) (db.Lead, bool, error)
	ListLeads(ctx context.Context, limit, offset int32) ([]db.Lead, error)
	CountLeads(ctx context.Context) (int64, error)
	UpdateLeadStatus(ctx context.Context, id uuid.UUID, status db.LeadStatus) (int64, error)
	ForceLeadStatus(ctx context.Context, id uuid.UUID, status db.LeadStatus) (int64, error)
	EnsureRep(ctx context.Context, id uuid.UUID, name string) error
}

// Service implements the lead exclusivity engine on top of the store's
// insert-if-absent primitive. The unique name key is the only mutual
// exclusion the resolver needs: the loser of a racing insert is handed
// the surviving record and classified against it.
type Service struct {
	Q      Querier
	Points *points.Service
	Bus    *events.Bus
	Log    zerolog.Logger
	Window time.Duration
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ResolveInput carries a rep's lead submission.
type ResolveInput struct {
	Name         string
	Priority     int32
	Contacts     json.RawMessage
	SampleBrands []string
}

// Resolve classifies the candidate account name against existing claims
// and, when the name is unclaimed, creates the lead and starts its
// exclusivity window. The flat lead point award and the created event are
// side channels: their failure is logged, never surfaced, because the
// lead record itself is the source of truth.
func (s *Service) Resolve(ctx context.Context, repID uuid.UUID, in ResolveInput) (Resolution, error) {
	if s == nil || s.Q == nil {
		return Resolution{}, errors.New("lead service not configured")
	}
	key := NameKey(in.Name)
	if key == "" {
		return Resolution{}, common.NewValidationError("account name is required")
	}

	existing, err := s.Q.GetLeadByKey(ctx, key)
	if err == nil {
		return s.classified(existing, repID), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Resolution{}, common.NewCollaboratorError("lead lookup failed", err)
	}

	if err := s.Q.EnsureRep(ctx, repID, ""); err != nil {
		return Resolution{}, common.NewCollaboratorError("rep lookup failed", err)
	}
	contacts := in.Contacts
	if len(contacts) == 0 {
		contacts = json.RawMessage("[]")
	}
	inserted, created, err := s.Q.InsertLeadIfAbsent(ctx, db.InsertLeadParams{
		Name:         in.Name,
		NameKey:      key,
		RepID:        repID,
		Priority:     in.Priority,
		Contacts:     contacts,
		SampleBrands: in.SampleBrands,
	})
	if err != nil {
		return Resolution{}, common.NewCollaboratorError("lead insert failed", err)
	}
	if !created {
		// Lost the race; the winner's record decides the outcome.
		return s.classified(inserted, repID), nil
	}

	s.awardLeadPoint(ctx, repID, inserted)
	s.emitCreated(ctx, inserted)
	s.count(OutcomeCreate)
	return Resolution{
		Outcome: OutcomeCreate,
		Message: "lead created; you hold the exclusive claim on this account",
		Lead:    inserted,
	}, nil
}

func (s *Service) classified(existing db.Lead, repID uuid.UUID) Resolution {
	res := Classify(existing, repID, s.now(), s.Window)
	s.count(res.Outcome)
	return res
}

func (s *Service) count(outcome Outcome) {
	if obs.LeadResolutionsTotal != nil {
		obs.LeadResolutionsTotal.WithLabelValues(string(outcome)).Inc()
	}
}

func (s *Service) awardLeadPoint(ctx context.Context, repID uuid.UUID, lead db.Lead) {
	if s.Points == nil {
		return
	}
	err := s.Points.AwardLead(ctx, repID, lead.ID, lead.NameKey)
	if err != nil && !errors.Is(err, points.ErrAlreadyApplied) {
		s.Log.Error().Err(err).Str("lead_id", lead.ID.String()).Msg("lead point award failed")
	}
}

func (s *Service) emitCreated(ctx context.Context, lead db.Lead) {
	if s.Bus == nil {
		return
	}
	if _, err := s.Bus.Emit(ctx, events.TopicLeadCreated, lead.ID.String(), lead); err != nil {
		s.Log.Warn().Err(err).Str("lead_id", lead.ID.String()).Msg("lead created event not fully delivered")
	}
}

// Get fetches one lead by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (db.Lead, error) {
	if s == nil || s.Q == nil {
		return db.Lead{}, errors.New("lead service not configured")
	}
	lead, err := s.Q.GetLeadByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Lead{}, common.NewNotFoundError("lead not found")
	}
	if err != nil {
		return db.Lead{}, common.NewCollaboratorError("lead lookup failed", err)
	}
	return lead, nil
}

// ListResult bundles a page of leads with the total count.
type ListResult struct {
	Items []db.Lead
	Total int64
}

// List returns leads newest first.
func (s *Service) List(ctx context.Context, page, perPage int) (ListResult, error) {
	if s == nil || s.Q == nil {
		return ListResult{}, errors.New("lead service not configured")
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	items, err := s.Q.ListLeads(ctx, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		return ListResult{}, common.NewCollaboratorError("lead list failed", err)
	}
	total, err := s.Q.CountLeads(ctx)
	if err != nil {
		return ListResult{}, common.NewCollaboratorError("lead count failed", err)
	}
	return ListResult{Items: items, Total: total}, nil
}

// UpdateStatus advances a lead's lifecycle. Status only moves forward and
// sold leads are immutable; both rules yield to an explicit override.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status db.LeadStatus, override bool) (db.Lead, error) {
	if s == nil || s.Q == nil {
		return db.Lead{}, errors.New("lead service not configured")
	}
	rank, ok := statusRank[status]
	if !ok {
		return db.Lead{}, common.NewValidationError("unknown lead status")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return db.Lead{}, err
	}
	if !override {
		if current.Status == db.LeadStatusSold {
			return db.Lead{}, common.NewConflictError("sold leads are immutable", nil)
		}
		if rank < statusRank[current.Status] {
			return db.Lead{}, common.NewConflictError("lead status only moves forward", nil)
		}
	}

	var affected int64
	if override {
		affected, err = s.Q.ForceLeadStatus(ctx, id, status)
	} else {
		affected, err = s.Q.UpdateLeadStatus(ctx, id, status)
	}
	if err != nil {
		return db.Lead{}, common.NewCollaboratorError("lead status update failed", err)
	}
	if affected == 0 {
		return db.Lead{}, common.NewConflictError("lead was sold by a concurrent update", nil)
	}
	return s.Get(ctx, id)
}

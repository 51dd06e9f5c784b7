package points

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/greenroute/fieldcrm/internal/common"
	"github.com/greenroute/fieldcrm/internal/db"
)

// HandlerQuerier is the store access the points endpoints need.
type HandlerQuerier interface {
	RebuildQuerier
	ListLedgerForRep(ctx context.Context, repID uuid.UUID, limit, offset int32) ([]db.PointsLedgerEntry, error)
	CountRepStores(ctx context.Context, repID uuid.UUID) (int64, error)
}

// Handler exposes the rep points endpoints.
type Handler struct {
	q   HandlerQuerier
	now func() time.Time
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Queries HandlerQuerier
	Now     func() time.Time
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{q: cfg.Queries, now: now}
}

type repPointsResponse struct {
	Rep            db.Rep                 `json:"rep"`
	LifetimePoints string                 `json:"lifetime_points"`
	PeriodPoints   string                 `json:"period_points"`
	PeriodKey      string                 `json:"period_key"`
	StoreCount     int64                  `json:"store_count"`
	Ledger         []db.PointsLedgerEntry `json:"ledger"`
}

// RepPoints handles GET /api/v1/reps/{id}/points.
func (h *Handler) RepPoints(w http.ResponseWriter, r *http.Request) {
	if h.q == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "points store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.NewValidationError("invalid rep id"))
		return
	}
	rep, err := h.q.GetRep(r.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		common.WriteError(w, common.NewNotFoundError("rep not found"))
		return
	}
	if err != nil {
		common.WriteError(w, common.NewCollaboratorError("rep lookup failed", err))
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	ledger, err := h.q.ListLedgerForRep(r.Context(), id, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.WriteError(w, common.NewCollaboratorError("ledger scan failed", err))
		return
	}
	stores, err := h.q.CountRepStores(r.Context(), id)
	if err != nil {
		common.WriteError(w, common.NewCollaboratorError("store count failed", err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": repPointsResponse{
		Rep:            rep,
		LifetimePoints: FromMillis(rep.LifetimePointsMillis).StringFixed(3),
		PeriodPoints:   FromMillis(rep.PeriodPointsMillis).StringFixed(3),
		PeriodKey:      rep.PeriodKey,
		StoreCount:     stores,
		Ledger:         ledger,
	}})
}

// Rebuild handles POST /api/v1/admin/reps/{id}/points/rebuild: the repair
// path that recomputes the cached counters from the append-only ledger.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if h.q == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "points store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.NewValidationError("invalid rep id"))
		return
	}
	rep, err := Rebuild(r.Context(), h.q, id, h.now())
	if errors.Is(err, pgx.ErrNoRows) {
		common.WriteError(w, common.NewNotFoundError("rep not found"))
		return
	}
	if err != nil {
		common.WriteError(w, common.NewCollaboratorError("ledger rebuild failed", err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rep})
}

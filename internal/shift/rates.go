package shift

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/greenroute/fieldcrm/internal/common"
	"github.com/greenroute/fieldcrm/internal/comp"
)

// RateStore serves the activation billing table and supports live
// updates. Writers replace the map rather than mutate it, so a snapshot
// handed to a reader never changes under it.
type RateStore struct {
	mu    sync.RWMutex
	table comp.RateTable
}

// NewRateStore wraps an initial rate table.
func NewRateStore(table comp.RateTable) *RateStore {
	return &RateStore{table: table}
}

// Snapshot returns the current table.
func (r *RateStore) Snapshot() comp.RateTable {
	if r == nil {
		return comp.RateTable{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.table
}

// Upsert sets a brand's hourly billing rate.
func (r *RateStore) Upsert(brandID string, rate comp.Cents) {
	if r == nil || brandID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[string]comp.Cents, len(r.table.Rates)+1)
	for k, v := range r.table.Rates {
		next[k] = v
	}
	next[brandID] = rate
	r.table = comp.NewRateTable(r.table.DefaultRate, next)
}

type rateRequest struct {
	HourlyRateCents int64 `json:"hourly_rate_cents" validate:"gt=0"`
}

// UpsertRate handles PUT /api/v1/admin/brand-rates/{brandID}: persists
// the rate and applies it to shifts recorded from now on. Already
// recorded shifts keep the revenue derived at write time.
func (h *Handler) UpsertRate(w http.ResponseWriter, r *http.Request) {
	if h.service == nil || h.service.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "shift service not configured", nil)
		return
	}
	brandID := chi.URLParam(r, "brandID")
	if brandID == "" {
		common.WriteError(w, common.NewValidationError("brand id is required"))
		return
	}
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.NewValidationError("invalid json body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.WriteError(w, common.NewValidationError("hourly rate must be positive"))
		return
	}
	if err := h.service.Q.UpsertBrandRate(r.Context(), brandID, req.HourlyRateCents); err != nil {
		common.WriteError(w, common.NewCollaboratorError("rate upsert failed", err))
		return
	}
	h.service.Table.Upsert(brandID, req.HourlyRateCents)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"brand_id":          brandID,
		"hourly_rate_cents": req.HourlyRateCents,
	}})
}

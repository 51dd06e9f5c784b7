package payroll

import (
	"net/http"
	"time"

	"github.com/greenroute/fieldcrm/internal/common"
	"github.com/greenroute/fieldcrm/internal/comp"
)

// Handler exposes the payroll reporting endpoint.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Summary handles GET /api/v1/payroll/summary. Optional from/to query
// parameters (RFC 3339) override the default trailing window.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "payroll service not configured", nil)
		return
	}
	from, to := h.service.Window()
	if days := common.AtoiDefault(r.URL.Query().Get("days"), 0); days > 0 {
		from = to.AddDate(0, 0, -days)
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.WriteError(w, common.NewValidationError("from must be RFC 3339"))
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.WriteError(w, common.NewValidationError("to must be RFC 3339"))
			return
		}
		to = parsed
	}
	summary, err := h.service.Summarize(r.Context(), from, to)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

type tierResponse struct {
	Stores       int    `json:"stores"`
	TotalCents   int64  `json:"total_cents"`
	TotalDollars string `json:"total_dollars"`
}

// BonusTiers handles GET /api/v1/payroll/bonus-tiers.
func (h *Handler) BonusTiers(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "payroll service not configured", nil)
		return
	}
	tiers := h.service.Bonuses.Tiers()
	out := make([]tierResponse, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, tierResponse{
			Stores:       tier.Stores,
			TotalCents:   tier.TotalCents,
			TotalDollars: comp.Dollars(tier.TotalCents).StringFixed(2),
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

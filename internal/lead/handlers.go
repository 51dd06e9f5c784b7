package lead

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/greenroute/fieldcrm/internal/common"
	"github.com/greenroute/fieldcrm/internal/db"
)

// Handler exposes the lead endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service   *Service
	Validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validator
	if v == nil {
		v = validator.New()
	}
	return &Handler{service: cfg.Service, validate: v}
}

type resolveRequest struct {
	Name         string          `json:"name" validate:"required"`
	Priority     int32           `json:"priority" validate:"gte=0,lte=5"`
	Contacts     json.RawMessage `json:"contacts"`
	SampleBrands []string        `json:"sample_brands" validate:"max=25,dive,required"`
}

// Resolve handles POST /api/v1/leads. The response status tracks the
// resolver outcome: 201 for a fresh claim, 200 for a redirect, 409 for
// both rejections, each with a distinct message so the rep knows whether
// the account is locked or already a client.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "lead service not configured", nil)
		return
	}
	repID, ok := repFromContext(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "rep identity required", nil)
		return
	}
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.NewValidationError("invalid json body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.WriteError(w, &common.AppError{
			Code:       common.CodeValidation,
			Message:    "invalid lead submission",
			HTTPStatus: http.StatusBadRequest,
			Details:    validationDetails(err),
		})
		return
	}
	res, err := h.service.Resolve(r.Context(), repID, ResolveInput{
		Name:         req.Name,
		Priority:     req.Priority,
		Contacts:     req.Contacts,
		SampleBrands: req.SampleBrands,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	switch res.Outcome {
	case OutcomeCreate:
		common.JSON(w, http.StatusCreated, map[string]any{"data": res})
	case OutcomeRedirectToSale:
		common.JSON(w, http.StatusOK, map[string]any{"data": res})
	default:
		common.JSONError(w, http.StatusConflict, string(res.Outcome), res.Message, map[string]any{"lead_id": res.Lead.ID})
	}
}

// Get handles GET /api/v1/leads/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "lead service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.NewValidationError("invalid lead id"))
		return
	}
	lead, err := h.service.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": lead})
}

// List handles GET /api/v1/leads.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "lead service not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	result, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(result.Total)},
	})
}

type statusRequest struct {
	Status   string `json:"status" validate:"required,oneof=prospect samples_requested samples_delivered active sold"`
	Override bool   `json:"override"`
}

// UpdateStatus handles PATCH /api/v1/leads/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "lead service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.NewValidationError("invalid lead id"))
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.NewValidationError("invalid json body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.WriteError(w, &common.AppError{
			Code:       common.CodeValidation,
			Message:    "invalid status transition",
			HTTPStatus: http.StatusBadRequest,
			Details:    validationDetails(err),
		})
		return
	}
	lead, err := h.service.UpdateStatus(r.Context(), id, db.LeadStatus(req.Status), req.Override)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": lead})
}

func repFromContext(r *http.Request) (uuid.UUID, bool) {
	raw, ok := common.RepID(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func validationDetails(err error) any {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return nil
	}
	fields := make(map[string]string, len(invalid))
	for _, fe := range invalid {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}

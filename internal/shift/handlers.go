package shift

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/greenroute/fieldcrm/internal/common"
)

// Handler exposes the shift endpoints.
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

type recordRequest struct {
	BrandID     string  `json:"brand_id" validate:"required"`
	AccountName string  `json:"account_name"`
	Hours       float64 `json:"hours" validate:"gt=0,lte=24"`
	Miles       float64 `json:"miles" validate:"gte=0"`
	TollCents   int64   `json:"toll_cents"`
	HasVehicle  bool    `json:"has_vehicle"`
}

// Record handles POST /api/v1/shifts.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "shift service not configured", nil)
		return
	}
	repID, ok := repFromContext(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "rep identity required", nil)
		return
	}
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.NewValidationError("invalid json body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.WriteError(w, &common.AppError{
			Code:       common.CodeValidation,
			Message:    "invalid shift submission",
			HTTPStatus: http.StatusBadRequest,
			Details:    validationDetails(err),
		})
		return
	}
	stored, err := h.service.Record(r.Context(), repID, RecordInput{
		BrandID:     req.BrandID,
		AccountName: req.AccountName,
		Hours:       req.Hours,
		Miles:       req.Miles,
		TollCents:   req.TollCents,
		HasVehicle:  req.HasVehicle,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": stored})
}

// Get handles GET /api/v1/shifts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "shift service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.NewValidationError("invalid shift id"))
		return
	}
	stored, err := h.service.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": stored})
}

type markPaidRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1,max=500"`
}

// MarkPaid handles POST /api/v1/admin/shifts/mark-paid.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "shift service not configured", nil)
		return
	}
	var req markPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.NewValidationError("invalid json body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.WriteError(w, common.NewValidationError("ids are required"))
		return
	}
	results, err := h.service.MarkPaid(r.Context(), req.IDs)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": results})
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

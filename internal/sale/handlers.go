package sale

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/greenroute/fieldcrm/internal/common"
)

// Handler exposes the sale endpoints.
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

type itemRequest struct {
	BrandID        string `json:"brand_id" validate:"required"`
	ProductID      string `json:"product_id"`
	Quantity       int32  `json:"quantity" validate:"gte=1"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gte=0"`
}

type recordRequest struct {
	AccountName   string        `json:"account_name" validate:"required"`
	AmountCents   int64         `json:"amount_cents" validate:"gt=0"`
	SaleDate      *time.Time    `json:"sale_date"`
	Items         []itemRequest `json:"items" validate:"dive"`
	LicenseNumber string        `json:"license_number"`
}

// Record handles POST /api/v1/sales.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "sale service not configured", nil)
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
			Message:    "invalid sale submission",
			HTTPStatus: http.StatusBadRequest,
			Details:    validationDetails(err),
		})
		return
	}
	in := RecordInput{
		AccountName:   req.AccountName,
		AmountCents:   req.AmountCents,
		Items:         make([]Item, 0, len(req.Items)),
		LicenseNumber: req.LicenseNumber,
	}
	if req.SaleDate != nil {
		in.SaleDate = *req.SaleDate
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, Item{
			BrandID:        item.BrandID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	recorded, err := h.service.Record(r.Context(), repID, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": recorded})
}

// Get handles GET /api/v1/sales/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "sale service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.NewValidationError("invalid sale id"))
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

// MarkPaid handles POST /api/v1/admin/sales/mark-paid.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "sale service not configured", nil)
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

package coupon

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/warung-ops/backend-warung/internal/common"
	"github.com/warung-ops/backend-warung/internal/pricing"
)

// Handler exposes administrative coupon management endpoints.
type Handler struct {
	Store    *Store
	Svc      *Service
	Validate *validator.Validate
}

type couponPayload struct {
	Code        string        `json:"code" validate:"required"`
	Kind        string        `json:"kind" validate:"required,oneof=percent fixed"`
	Value       pricing.Money `json:"value" validate:"gte=0"`
	PercentBps  int32         `json:"percentBps" validate:"gte=0,lte=10000"`
	MinOrder    pricing.Money `json:"minOrder" validate:"gte=0"`
	MaxDiscount pricing.Money `json:"maxDiscount" validate:"gte=0"`
	ValidFrom   *time.Time    `json:"validFrom"`
	ValidTo     *time.Time    `json:"validTo"`
	UsageLimit  int32         `json:"usageLimit" validate:"gte=0"`
	Enabled     *bool         `json:"enabled"`
}

func (p couponPayload) toModel() (Coupon, error) {
	if Kind(p.Kind) == KindPercent && p.PercentBps <= 0 {
		return Coupon{}, errors.New("percentBps must be positive for percent coupons")
	}
	if p.ValidFrom != nil && p.ValidTo != nil && p.ValidTo.Before(*p.ValidFrom) {
		return Coupon{}, errors.New("validTo must not precede validFrom")
	}
	enabled := true
	if p.Enabled != nil {
		enabled = *p.Enabled
	}
	return Coupon{
		Code:        NormalizeCode(p.Code),
		Kind:        Kind(p.Kind),
		Value:       p.Value,
		PercentBps:  p.PercentBps,
		MinOrder:    p.MinOrder,
		MaxDiscount: p.MaxDiscount,
		ValidFrom:   p.ValidFrom,
		ValidTo:     p.ValidTo,
		UsageLimit:  p.UsageLimit,
		Enabled:     enabled,
	}, nil
}

func (h *Handler) decode(r *http.Request, payload *couponPayload) error {
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		return errors.New("invalid payload")
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			return err
		}
	}
	return nil
}

// Create inserts a new coupon.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon store not configured", nil)
		return
	}
	var payload couponPayload
	if err := h.decode(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	model, err := payload.toModel()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	created, err := h.Store.Create(r.Context(), model)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "coupon code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create coupon", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Update mutates an existing coupon identified by code.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon store not configured", nil)
		return
	}
	code := chi.URLParam(r, "code")
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	var payload couponPayload
	if err := h.decode(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	payload.Code = code
	model, err := payload.toModel()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	updated, err := h.Store.Update(r.Context(), model)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update coupon", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// List returns the tenant's coupons.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	coupons, err := h.Store.List(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list coupons", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": coupons})
}

// Delete removes a coupon by code.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon store not configured", nil)
		return
	}
	code := chi.URLParam(r, "code")
	if err := h.Store.Delete(r.Context(), code); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete coupon", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"code": NormalizeCode(code)}})
}

type previewRequest struct {
	Code   string        `json:"code" validate:"required"`
	Amount pricing.Money `json:"amount" validate:"gt=0"`
}

// Preview returns the simulated discount for a coupon without persisting state.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon service not configured", nil)
		return
	}
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
	}
	applied, err := h.Svc.Evaluate(r.Context(), req.Code, req.Amount)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, ErrorCode(err), err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": applied})
}

// ErrorCode maps resolver errors onto machine-distinguishable API codes.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "COUPON_NOT_FOUND"
	case errors.Is(err, ErrExpired):
		return "COUPON_EXPIRED"
	case errors.Is(err, ErrExhausted):
		return "COUPON_EXHAUSTED"
	case errors.Is(err, ErrMinOrderNotMet):
		return "MIN_ORDER_NOT_MET"
	default:
		return "BAD_REQUEST"
	}
}

package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/warung-ops/backend-warung/internal/common"
	"github.com/warung-ops/backend-warung/internal/coupon"
	"github.com/warung-ops/backend-warung/internal/pricing"
)

// Handler exposes the checkout and order management endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type itemPayload struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Qty       int    `json:"qty" validate:"required,gte=1"`
}

func parseItems(payloads []itemPayload) ([]ItemInput, error) {
	if len(payloads) == 0 {
		return nil, errors.New("at least one item is required")
	}
	out := make([]ItemInput, 0, len(payloads))
	for _, p := range payloads {
		id, err := uuid.Parse(p.ProductID)
		if err != nil {
			return nil, errors.New("invalid product id: " + p.ProductID)
		}
		out = append(out, ItemInput{ProductID: id, Qty: p.Qty})
	}
	return out, nil
}

func ownerKey(r *http.Request) string {
	if uid, ok := common.UserID(r.Context()); ok && uid != "" {
		return "user:" + uid
	}
	if key := strings.TrimSpace(r.Header.Get("X-Cart-Key")); key != "" {
		return "anon:" + key
	}
	return ""
}

// writeQuoteError maps calculator failures, giving coupon sentinels their
// machine codes.
func writeQuoteError(w http.ResponseWriter, err error) {
	if common.IsAppError(err) {
		common.WriteError(w, err)
		return
	}
	switch {
	case errors.Is(err, coupon.ErrNotFound), errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrExhausted), errors.Is(err, coupon.ErrMinOrderNotMet):
		common.JSONError(w, http.StatusBadRequest, coupon.ErrorCode(err), err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing failed", nil)
	}
}

type calculateRequest struct {
	Items                   []itemPayload `json:"items" validate:"required,min=1,dive"`
	CouponCode              string        `json:"couponCode"`
	PreserveOriginalPricing bool          `json:"preserveOriginalPricing"`
}

type quoteView struct {
	pricing.Breakdown
	AppliedCoupon *coupon.Applied `json:"appliedCoupon,omitempty"`
	CouponWarning string          `json:"couponWarning,omitempty"`
}

// Calculate previews a breakdown without mutating usage counters. Invalid
// coupons degrade to a warning here; only checkout treats them as fatal.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	var req calculateRequest
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
	items, err := parseItems(req.Items)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ITEM", err.Error(), nil)
		return
	}
	q, err := h.Svc.Preview(r.Context(), items, req.CouponCode, req.PreserveOriginalPricing)
	if err != nil {
		writeQuoteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quoteView{Breakdown: q.Breakdown, AppliedCoupon: q.Coupon, CouponWarning: q.CouponWarning}})
}

type createRequest struct {
	Items      []itemPayload   `json:"items" validate:"required,min=1,dive"`
	CouponCode string          `json:"couponCode"`
	CartID     string          `json:"cartId"`
	Shipping   json.RawMessage `json:"shippingDetails"`
	Payment    json.RawMessage `json:"paymentDetails"`
}

// Create places an order. Coupon failures are fatal here, and usage counters
// increment exactly once.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	owner := ownerKey(r)
	if owner == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "missing order owner: authenticate or send X-Cart-Key", nil)
		return
	}
	var req createRequest
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
	items, err := parseItems(req.Items)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ITEM", err.Error(), nil)
		return
	}
	in := CreateInput{
		OwnerKey:   owner,
		Items:      items,
		CouponCode: req.CouponCode,
		Shipping:   req.Shipping,
		Payment:    req.Payment,
	}
	if req.CartID != "" {
		if cartID, err := uuid.Parse(req.CartID); err == nil {
			in.CartID = &cartID
		}
	}
	created, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeQuoteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Get returns one order.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Svc.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	o, err := h.Svc.Store.Get(r.Context(), id)
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// List returns the caller's orders (or all orders for admins hitting the
// admin mount, where owner filtering is skipped).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, ownerKey(r))
}

// ListAll is the admin listing without owner filtering.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "")
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, owner string) {
	if h.Svc == nil || h.Svc.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	status := Status(r.URL.Query().Get("status"))
	orders, err := h.Svc.Store.List(r.Context(), owner, status, perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orders})
}

type updateRequest struct {
	Items      []itemPayload `json:"items" validate:"required,min=1,dive"`
	CouponCode string        `json:"couponCode"`
}

// Update edits an order's items under the pricing preservation policy.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req updateRequest
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
	items, err := parseItems(req.Items)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ITEM", err.Error(), nil)
		return
	}
	updated, err := h.Svc.UpdateItems(r.Context(), id, items, req.CouponCode)
	if err != nil {
		writeQuoteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// Cancel cancels the caller's order.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	canceled, err := h.Svc.Cancel(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": canceled})
}

// SetStatus is the admin status transition endpoint.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req struct {
		Status string `json:"status" validate:"required,oneof=pending processing confirmed delivered canceled"`
	}
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
	updated, err := h.Svc.SetStatus(r.Context(), id, Status(req.Status))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

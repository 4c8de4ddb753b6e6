package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/warung-ops/backend-warung/internal/catalog"
	"github.com/warung-ops/backend-warung/internal/common"
	"github.com/warung-ops/backend-warung/internal/pricing"
)

// Handler exposes the cart endpoints. Carts are owned either by the
// authenticated user or by an anonymous key from the X-Cart-Key header.
type Handler struct {
	Store    *Store
	Catalog  *catalog.Service
	Validate *validator.Validate
}

func ownerKey(r *http.Request) (string, bool) {
	if uid, ok := common.UserID(r.Context()); ok && uid != "" {
		return "user:" + uid, true
	}
	if key := strings.TrimSpace(r.Header.Get("X-Cart-Key")); key != "" {
		return "anon:" + key, true
	}
	return "", false
}

func (h *Handler) cartFor(w http.ResponseWriter, r *http.Request) (Cart, bool) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart store not configured", nil)
		return Cart{}, false
	}
	key, ok := ownerKey(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "missing cart owner: authenticate or send X-Cart-Key", nil)
		return Cart{}, false
	}
	c, err := h.Store.GetOrCreate(r.Context(), key)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load cart", nil)
		return Cart{}, false
	}
	return c, true
}

type cartView struct {
	Cart
	Subtotal pricing.Money `json:"subtotal"`
}

func viewOf(c Cart) cartView {
	var subtotal pricing.Money
	for _, it := range c.Items {
		subtotal += it.UnitPrice * pricing.Money(it.Qty)
	}
	return cartView{Cart: c, Subtotal: subtotal}
}

// Get returns the owner's cart with a running subtotal.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.cartFor(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": viewOf(c)})
}

// AddItem puts a product in the cart, snapshotting its current price.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.cartFor(w, r)
	if !ok {
		return
	}
	var payload struct {
		ProductID string `json:"productId" validate:"required,uuid"`
		Qty       int32  `json:"qty" validate:"required,gt=0"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
	}
	productID, err := uuid.Parse(payload.ProductID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	if h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	found, err := h.Catalog.Lookup(r.Context(), []uuid.UUID{productID})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	p := found[productID]
	item := Item{ProductID: p.ID, Name: p.Name, Category: p.Category, UnitPrice: p.Price, Qty: payload.Qty}
	if err := h.Store.UpsertItem(r.Context(), c.ID, item); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to add item", nil)
		return
	}
	refreshed, err := h.Store.GetOrCreate(r.Context(), c.OwnerKey)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load cart", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": viewOf(refreshed)})
}

// SetQty updates an item's quantity; zero removes it.
func (h *Handler) SetQty(w http.ResponseWriter, r *http.Request) {
	c, ok := h.cartFor(w, r)
	if !ok {
		return
	}
	productID, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var payload struct {
		Qty int32 `json:"qty" validate:"gte=0"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Store.SetQty(r.Context(), c.ID, productID, payload.Qty); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "item not in cart", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update item", nil)
		return
	}
	refreshed, err := h.Store.GetOrCreate(r.Context(), c.OwnerKey)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load cart", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": viewOf(refreshed)})
}

// RemoveItem deletes one line from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.cartFor(w, r)
	if !ok {
		return
	}
	productID, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	if err := h.Store.RemoveItem(r.Context(), c.ID, productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "item not in cart", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to remove item", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"productId": productID.String()}})
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	c, ok := h.cartFor(w, r)
	if !ok {
		return
	}
	if err := h.Store.Clear(r.Context(), c.ID); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to clear cart", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"id": c.ID.String()}})
}

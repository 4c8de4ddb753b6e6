package settings

import (
	"encoding/json"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/warung-ops/backend-warung/internal/common"
	"github.com/warung-ops/backend-warung/internal/pricing"
)

// Handler exposes the admin get/put endpoints for pricing settings.
type Handler struct {
	Store    *Store
	Validate *validator.Validate
}

type payload struct {
	TaxBps       int32         `json:"taxBps" validate:"gte=0,lte=10000"`
	ShippingFlat pricing.Money `json:"shippingFlat" validate:"gte=0"`
	Currency     string        `json:"currency" validate:"omitempty,len=3"`
}

// Get returns the tenant's settings (defaults when never saved).
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settings store not configured", nil)
		return
	}
	s, err := h.Store.Get(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load settings", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s})
}

// Put replaces the tenant's settings.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settings store not configured", nil)
		return
	}
	var p payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(p); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
	}
	saved, err := h.Store.Put(r.Context(), Settings{TaxBps: p.TaxBps, ShippingFlat: p.ShippingFlat, Currency: p.Currency})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to save settings", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": saved})
}

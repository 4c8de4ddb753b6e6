package recipes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/warung-ops/backend-warung/internal/common"
	"github.com/warung-ops/backend-warung/internal/pricing"
)

// Handler exposes material and recipe administration.
type Handler struct {
	Store    *Store
	Validate *validator.Validate
}

type materialPayload struct {
	Name        string `json:"name" validate:"required"`
	Unit        string `json:"unit" validate:"required"`
	CostPerUnit int64  `json:"costPerUnit" validate:"gte=0"`
}

type recipePayload struct {
	ProductID   *uuid.UUID `json:"productId"`
	Name        string     `json:"name" validate:"required"`
	YieldQty    int        `json:"yieldQty" validate:"gt=0"`
	Ingredients []struct {
		MaterialID uuid.UUID `json:"materialId" validate:"required"`
		Quantity   float64   `json:"quantity" validate:"gt=0"`
	} `json:"ingredients" validate:"required,min=1,dive"`
	Steps []string `json:"steps"`
}

func (p recipePayload) toModel() Recipe {
	r := Recipe{ProductID: p.ProductID, Name: p.Name, YieldQty: p.YieldQty, Steps: p.Steps}
	for _, ing := range p.Ingredients {
		r.Ingredients = append(r.Ingredients, Ingredient{MaterialID: ing.MaterialID, Quantity: ing.Quantity})
	}
	return r
}

func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(dst); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return false
		}
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "recipe not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "recipe operation failed", nil)
}

// ListMaterials returns the tenant's raw materials.
func (h *Handler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.Store.ListMaterials(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": materials})
}

// CreateMaterial registers a raw material with its unit cost.
func (h *Handler) CreateMaterial(w http.ResponseWriter, r *http.Request) {
	var payload materialPayload
	if !h.decodeValid(w, r, &payload) {
		return
	}
	created, err := h.Store.CreateMaterial(r.Context(), Material{
		Name: payload.Name, Unit: payload.Unit, CostPerUnit: pricing.Money(payload.CostPerUnit),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// UpdateMaterial changes a material's unit cost.
func (h *Handler) UpdateMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid material id", nil)
		return
	}
	var payload materialPayload
	if !h.decodeValid(w, r, &payload) {
		return
	}
	updated, err := h.Store.UpdateMaterial(r.Context(), Material{
		ID: id, Name: payload.Name, Unit: payload.Unit, CostPerUnit: pricing.Money(payload.CostPerUnit),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// List returns the tenant's recipes.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.Store.List(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Get fetches one recipe with its lines and steps.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid recipe id", nil)
		return
	}
	recipe, err := h.Store.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": recipe})
}

// Create persists a new recipe.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload recipePayload
	if !h.decodeValid(w, r, &payload) {
		return
	}
	created, err := h.Store.Create(r.Context(), payload.toModel())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Update replaces a recipe.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid recipe id", nil)
		return
	}
	var payload recipePayload
	if !h.decodeValid(w, r, &payload) {
		return
	}
	model := payload.toModel()
	model.ID = id
	updated, err := h.Store.Update(r.Context(), model)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// Delete removes a recipe.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid recipe id", nil)
		return
	}
	if err := h.Store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cost returns the batch and per-portion cost at current material prices.
func (h *Handler) Cost(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid recipe id", nil)
		return
	}
	recipe, err := h.Store.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	costing, err := Cost(r.Context(), h.Store, recipe)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "costing failed", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": costing})
}

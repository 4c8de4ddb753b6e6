package promo

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/warung-ops/backend-warung/internal/common"
	"github.com/warung-ops/backend-warung/internal/pricing"
)

// Handler exposes administrative endpoints for automatic discount rules.
type Handler struct {
	Store    *Store
	Validate *validator.Validate
}

type rulePayload struct {
	Name        string        `json:"name" validate:"required"`
	Kind        string        `json:"kind" validate:"required,oneof=percent fixed bulk buy_x_get_y"`
	PercentBps  int32         `json:"percentBps" validate:"gte=0,lte=10000"`
	FixedAmount pricing.Money `json:"fixedAmount" validate:"gte=0"`
	Threshold   int           `json:"bulkThreshold" validate:"gte=0"`
	BulkBps     int32         `json:"bulkBps" validate:"gte=0,lte=10000"`
	BuyQty      int           `json:"buyQty" validate:"gte=0"`
	GetQty      int           `json:"getQty" validate:"gte=0"`
	MinOrder    pricing.Money `json:"minOrder" validate:"gte=0"`
	MaxDiscount pricing.Money `json:"maxDiscount" validate:"gte=0"`
	ValidFrom   *time.Time    `json:"validFrom"`
	ValidTo     *time.Time    `json:"validTo"`
	UsageLimit  int32         `json:"usageLimit" validate:"gte=0"`
	Enabled     *bool         `json:"enabled"`
	ProductIDs  []string      `json:"productIds"`
	Categories  []string      `json:"categories"`
}

func (p rulePayload) toModel() (Rule, error) {
	var cond Condition
	switch Kind(p.Kind) {
	case KindPercent:
		if p.PercentBps <= 0 {
			return Rule{}, errors.New("percentBps must be positive for percent rules")
		}
		cond = PercentCond{Bps: p.PercentBps}
	case KindFixed:
		if p.FixedAmount <= 0 {
			return Rule{}, errors.New("fixedAmount must be positive for fixed rules")
		}
		cond = FixedCond{Amount: p.FixedAmount}
	case KindBulk:
		if p.Threshold <= 0 || p.BulkBps <= 0 {
			return Rule{}, errors.New("bulkThreshold and bulkBps must be positive for bulk rules")
		}
		cond = BulkCond{Threshold: p.Threshold, Bps: p.BulkBps}
	case KindBuyXGetY:
		cond = BuyXGetYCond{BuyQty: p.BuyQty, GetQty: p.GetQty}
	default:
		return Rule{}, errors.New("invalid kind")
	}
	if p.ValidFrom != nil && p.ValidTo != nil && p.ValidTo.Before(*p.ValidFrom) {
		return Rule{}, errors.New("validTo must not precede validFrom")
	}
	productIDs := make([]uuid.UUID, 0, len(p.ProductIDs))
	for _, raw := range p.ProductIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Rule{}, errors.New("invalid product id in scope")
		}
		productIDs = append(productIDs, id)
	}
	enabled := true
	if p.Enabled != nil {
		enabled = *p.Enabled
	}
	return Rule{
		Name:        p.Name,
		Kind:        Kind(p.Kind),
		Cond:        cond,
		MinOrder:    p.MinOrder,
		MaxDiscount: p.MaxDiscount,
		ValidFrom:   p.ValidFrom,
		ValidTo:     p.ValidTo,
		UsageLimit:  p.UsageLimit,
		Enabled:     enabled,
		ProductIDs:  productIDs,
		Categories:  p.Categories,
	}, nil
}

type ruleView struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Kind        Kind          `json:"kind"`
	Cond        Condition     `json:"condition"`
	MinOrder    pricing.Money `json:"minOrder"`
	MaxDiscount pricing.Money `json:"maxDiscount"`
	ValidFrom   *time.Time    `json:"validFrom,omitempty"`
	ValidTo     *time.Time    `json:"validTo,omitempty"`
	UsageLimit  int32         `json:"usageLimit"`
	UsedCount   int32         `json:"usedCount"`
	Enabled     bool          `json:"enabled"`
	ProductIDs  []uuid.UUID   `json:"productIds,omitempty"`
	Categories  []string      `json:"categories,omitempty"`
}

func viewOf(r Rule) ruleView {
	return ruleView{
		ID: r.ID, Name: r.Name, Kind: r.Kind, Cond: r.Cond,
		MinOrder: r.MinOrder, MaxDiscount: r.MaxDiscount,
		ValidFrom: r.ValidFrom, ValidTo: r.ValidTo,
		UsageLimit: r.UsageLimit, UsedCount: r.UsedCount, Enabled: r.Enabled,
		ProductIDs: r.ProductIDs, Categories: r.Categories,
	}
}

func (h *Handler) decode(r *http.Request, payload *rulePayload) error {
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

// Create inserts a new automatic discount rule.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo store not configured", nil)
		return
	}
	var payload rulePayload
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
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create rule", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": viewOf(created)})
}

// Update replaces an existing rule identified by ID.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid rule id", nil)
		return
	}
	var payload rulePayload
	if err := h.decode(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	model, err := payload.toModel()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	model.ID = id
	updated, err := h.Store.Update(r.Context(), model)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "rule not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update rule", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": viewOf(updated)})
}

// List returns the tenant's rules.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	rules, err := h.Store.List(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list rules", nil)
		return
	}
	views := make([]ruleView, 0, len(rules))
	for _, rule := range rules {
		views = append(views, viewOf(rule))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

// Delete removes a rule by ID.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid rule id", nil)
		return
	}
	if err := h.Store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "rule not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete rule", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"id": id.String()}})
}

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/warung-ops/backend-warung/internal/common"
	"github.com/warung-ops/backend-warung/internal/pricing"
	"github.com/warung-ops/backend-warung/internal/tenant"
)

// ImageSigner issues presigned URLs for product images. Implemented by the
// storage package; nil when object storage is not configured.
type ImageSigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
	PresignPut(ctx context.Context, key, contentType string) (string, error)
}

// Handler exposes the public menu and the admin product CRUD.
type Handler struct {
	Store    *Store
	Svc      *Service
	Signer   ImageSigner
	Validate *validator.Validate
}

type productPayload struct {
	Name        string        `json:"name" validate:"required"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Price       pricing.Money `json:"price" validate:"gte=0"`
	CostPrice   pricing.Money `json:"costPrice" validate:"gte=0"`
	ImageKey    string        `json:"imageKey"`
	Available   *bool         `json:"available"`
	Stock       int32         `json:"stock" validate:"gte=0"`
	TrackStock  bool          `json:"trackStock"`
}

func (p productPayload) toModel() Product {
	available := true
	if p.Available != nil {
		available = *p.Available
	}
	return Product{
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		CostPrice:   p.CostPrice,
		ImageKey:    p.ImageKey,
		Available:   available,
		Stock:       p.Stock,
		TrackStock:  p.TrackStock,
	}
}

type productView struct {
	Product
	ImageURL string `json:"imageUrl,omitempty"`
}

func (h *Handler) view(ctx context.Context, p Product) productView {
	v := productView{Product: p}
	if h.Signer != nil && p.ImageKey != "" {
		if url, err := h.Signer.PresignGet(ctx, p.ImageKey); err == nil {
			v.ImageURL = url
		}
	}
	return v
}

func (h *Handler) decode(r *http.Request, payload *productPayload) error {
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

// Menu serves the cached public menu of available products.
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	tid, _ := tenant.From(r.Context())
	products, err := h.Svc.Menu(r.Context(), tid)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load menu", nil)
		return
	}
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, h.view(r.Context(), p))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

// List returns products for admins, including unavailable ones.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	filter := ListFilter{
		Query:    r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
		Limit:    perPage,
		Offset:   (page - 1) * perPage,
	}
	products, err := h.Store.List(r.Context(), filter)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list products", nil)
		return
	}
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, h.view(r.Context(), p))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

// Get returns one product.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	p, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(r.Context(), p)})
}

// Categories lists the distinct categories in use.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog store not configured", nil)
		return
	}
	cats, err := h.Store.ListCategories(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list categories", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cats})
}

// Create inserts a product.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog store not configured", nil)
		return
	}
	var payload productPayload
	if err := h.decode(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	created, err := h.Store.Create(r.Context(), payload.toModel())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create product", nil)
		return
	}
	tid, _ := tenant.From(r.Context())
	h.Svc.InvalidateMenu(r.Context(), tid)
	common.JSON(w, http.StatusCreated, map[string]any{"data": h.view(r.Context(), created)})
}

// Update replaces a product.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var payload productPayload
	if err := h.decode(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	model := payload.toModel()
	model.ID = id
	updated, err := h.Store.Update(r.Context(), model)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update product", nil)
		return
	}
	tid, _ := tenant.From(r.Context())
	h.Svc.InvalidateMenu(r.Context(), tid)
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(r.Context(), updated)})
}

// Delete removes a product.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	if err := h.Store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete product", nil)
		return
	}
	tid, _ := tenant.From(r.Context())
	h.Svc.InvalidateMenu(r.Context(), tid)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"id": id.String()}})
}

// UploadURL issues a presigned PUT URL for a product image.
func (h *Handler) UploadURL(w http.ResponseWriter, r *http.Request) {
	if h.Signer == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "object storage not configured", nil)
		return
	}
	var payload struct {
		Key         string `json:"key" validate:"required"`
		ContentType string `json:"contentType" validate:"required"`
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
	tid, _ := tenant.From(r.Context())
	key := tenant.PrefixKey(tid, payload.Key)
	url, err := h.Signer.PresignPut(r.Context(), key, payload.ContentType)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to presign upload", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"key": key, "uploadUrl": url}})
}

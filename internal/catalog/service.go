package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/warung-ops/backend-warung/internal/common"
)

type productSource interface {
	Get(ctx context.Context, id uuid.UUID) (Product, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error)
	List(ctx context.Context, f ListFilter) ([]Product, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// Service orchestrates product reads, caching the hot menu listing.
type Service struct {
	Store productSource
	Cache *Cache
}

func menuCacheKey(tenantID string) string {
	return "catalog:menu:" + tenantID
}

// Menu returns the tenant's available products, served from cache when warm.
// tenantID keys the cache; the store scopes by the tenant in context.
func (s *Service) Menu(ctx context.Context, tenantID string) ([]Product, error) {
	if s == nil || s.Store == nil {
		return nil, ErrStoreUnavailable
	}
	key := menuCacheKey(tenantID)
	var cached []Product
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	products, err := s.Store.List(ctx, ListFilter{OnlyAvailable: true, Limit: 200})
	if err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	_ = s.Cache.SetJSON(ctx, key, products)
	return products, nil
}

// InvalidateMenu drops the cached menu after a catalog mutation.
func (s *Service) InvalidateMenu(ctx context.Context, tenantID string) {
	if s == nil {
		return
	}
	_ = s.Cache.Invalidate(ctx, menuCacheKey(tenantID))
}

// Lookup resolves a batch of product IDs for order pricing. Every requested ID
// must exist and be available, or the call fails with a typed error naming the
// offending product.
func (s *Service) Lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	if s == nil || s.Store == nil {
		return nil, ErrStoreUnavailable
	}
	found, err := s.Store.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup products: %w", err)
	}
	for _, id := range ids {
		p, ok := found[id]
		if !ok {
			return nil, &common.AppError{
				Code:       "PRODUCT_NOT_FOUND",
				Message:    "product not found: " + id.String(),
				HTTPStatus: http.StatusBadRequest,
				Details:    map[string]any{"productId": id.String()},
			}
		}
		if !p.Available {
			return nil, &common.AppError{
				Code:       "INVALID_ITEM",
				Message:    "product not available: " + p.Name,
				HTTPStatus: http.StatusBadRequest,
				Details:    map[string]any{"productId": id.String()},
			}
		}
	}
	return found, nil
}

// Get fetches a single product, translating missing rows into a 404.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	if s == nil || s.Store == nil {
		return Product{}, ErrStoreUnavailable
	}
	p, err := s.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

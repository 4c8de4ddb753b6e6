package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/warung-ops/backend-warung/internal/common"
	"github.com/warung-ops/backend-warung/internal/pricing"
)

type fakeSource struct {
	products  map[uuid.UUID]Product
	listCalls int
}

func (f *fakeSource) Get(_ context.Context, id uuid.UUID) (Product, error) {
	p, ok := f.products[id]
	if !ok {
		return Product{}, errors.New("no rows")
	}
	return p, nil
}

func (f *fakeSource) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	out := map[uuid.UUID]Product{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeSource) List(_ context.Context, _ ListFilter) ([]Product, error) {
	f.listCalls++
	var out []Product
	for _, p := range f.products {
		if p.Available {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeSource) ListCategories(_ context.Context) ([]string, error) { return nil, nil }

func TestLookupMissingProduct(t *testing.T) {
	src := &fakeSource{products: map[uuid.UUID]Product{}}
	svc := &Service{Store: src}
	missing := uuid.New()

	_, err := svc.Lookup(context.Background(), []uuid.UUID{missing})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "PRODUCT_NOT_FOUND", appErr.Code)
}

func TestLookupUnavailableProduct(t *testing.T) {
	id := uuid.New()
	src := &fakeSource{products: map[uuid.UUID]Product{
		id: {ID: id, Name: "Es Teh", Available: false},
	}}
	svc := &Service{Store: src}

	_, err := svc.Lookup(context.Background(), []uuid.UUID{id})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_ITEM", appErr.Code)
}

func TestLookupReturnsAllRequested(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	src := &fakeSource{products: map[uuid.UUID]Product{
		a: {ID: a, Name: "Nasi Goreng", Available: true, Price: 25_000},
		b: {ID: b, Name: "Es Jeruk", Available: true, Price: 8_000},
	}}
	svc := &Service{Store: src}

	found, err := svc.Lookup(context.Background(), []uuid.UUID{a, b})
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, pricing.Money(25_000), found[a].Price)
}

func TestMenuWithoutCacheHitsStore(t *testing.T) {
	id := uuid.New()
	src := &fakeSource{products: map[uuid.UUID]Product{
		id: {ID: id, Name: "Kopi", Available: true},
	}}
	svc := &Service{Store: src}

	first, err := svc.Menu(context.Background(), "warung-a")
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, 1, src.listCalls)
}

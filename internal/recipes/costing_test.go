package recipes

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/warung-ops/backend-warung/internal/pricing"
)

type fakeMaterials map[uuid.UUID]Material

func (f fakeMaterials) GetMaterials(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]Material, error) {
	out := map[uuid.UUID]Material{}
	for _, id := range ids {
		if m, ok := f[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func TestCostSumsLinesAndDividesByYield(t *testing.T) {
	rice := Material{ID: uuid.New(), Name: "beras", Unit: "kg", CostPerUnit: 14_000}
	chicken := Material{ID: uuid.New(), Name: "ayam", Unit: "kg", CostPerUnit: 38_000}
	lookup := fakeMaterials{rice.ID: rice, chicken.ID: chicken}

	recipe := Recipe{
		ID:       uuid.New(),
		Name:     "nasi ayam",
		YieldQty: 10,
		Ingredients: []Ingredient{
			{MaterialID: rice.ID, Quantity: 2},     // 28000
			{MaterialID: chicken.ID, Quantity: 1.5}, // 57000
		},
	}

	costing, err := Cost(context.Background(), lookup, recipe)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(85_000), costing.BatchCost)
	require.Equal(t, pricing.Money(8_500), costing.PerPortionCost)
	require.Len(t, costing.Lines, 2)
	require.Equal(t, pricing.Money(57_000), costing.Lines[1].LineCost)
}

func TestCostRoundsFractionalQuantities(t *testing.T) {
	oil := Material{ID: uuid.New(), Name: "minyak", Unit: "l", CostPerUnit: 17_500}
	lookup := fakeMaterials{oil.ID: oil}

	recipe := Recipe{ID: uuid.New(), YieldQty: 3, Ingredients: []Ingredient{
		{MaterialID: oil.ID, Quantity: 0.333}, // 5827.5 -> 5828
	}}

	costing, err := Cost(context.Background(), lookup, recipe)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(5_828), costing.BatchCost)
	require.Equal(t, pricing.Money(1_943), costing.PerPortionCost)
}

func TestCostUnknownMaterialFails(t *testing.T) {
	recipe := Recipe{ID: uuid.New(), YieldQty: 1, Ingredients: []Ingredient{
		{MaterialID: uuid.New(), Quantity: 1},
	}}
	_, err := Cost(context.Background(), fakeMaterials{}, recipe)
	require.Error(t, err)
}

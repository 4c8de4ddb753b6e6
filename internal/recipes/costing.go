package recipes

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/warung-ops/backend-warung/internal/pricing"
)

// MaterialLookup resolves materials by ID; satisfied by *Store.
type MaterialLookup interface {
	GetMaterials(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Material, error)
}

// CostLine is the priced form of one ingredient.
type CostLine struct {
	MaterialID uuid.UUID     `json:"materialId"`
	Name       string        `json:"name"`
	Unit       string        `json:"unit"`
	Quantity   float64       `json:"quantity"`
	UnitCost   pricing.Money `json:"unitCost"`
	LineCost   pricing.Money `json:"lineCost"`
}

// Costing is the full cost breakdown of one batch.
type Costing struct {
	RecipeID       uuid.UUID     `json:"recipeId"`
	YieldQty       int           `json:"yieldQty"`
	Lines          []CostLine    `json:"lines"`
	BatchCost      pricing.Money `json:"batchCost"`
	PerPortionCost pricing.Money `json:"perPortionCost"`
}

// Cost prices every ingredient line at current material costs. Line
// costs round half up to the nearest minor unit.
func Cost(ctx context.Context, lookup MaterialLookup, r Recipe) (Costing, error) {
	ids := make([]uuid.UUID, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		ids = append(ids, ing.MaterialID)
	}
	materials, err := lookup.GetMaterials(ctx, ids)
	if err != nil {
		return Costing{}, err
	}

	costing := Costing{RecipeID: r.ID, YieldQty: r.YieldQty, Lines: make([]CostLine, 0, len(r.Ingredients))}
	for _, ing := range r.Ingredients {
		mat, ok := materials[ing.MaterialID]
		if !ok {
			return Costing{}, fmt.Errorf("recipes: material %s not found", ing.MaterialID)
		}
		lineCost := pricing.Money(math.Round(ing.Quantity * float64(mat.CostPerUnit)))
		costing.Lines = append(costing.Lines, CostLine{
			MaterialID: mat.ID,
			Name:       mat.Name,
			Unit:       mat.Unit,
			Quantity:   ing.Quantity,
			UnitCost:   mat.CostPerUnit,
			LineCost:   lineCost,
		})
		costing.BatchCost += lineCost
	}
	if r.YieldQty > 0 {
		costing.PerPortionCost = pricing.Money(math.Round(float64(costing.BatchCost) / float64(r.YieldQty)))
	}
	return costing, nil
}

// Package recipes manages raw materials and recipes, including batch
// costing based on ingredient unit costs.
package recipes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warung-ops/backend-warung/internal/pricing"
	"github.com/warung-ops/backend-warung/internal/tenant"
)

// Material is a purchasable ingredient with a cost per unit.
type Material struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Unit        string        `json:"unit"`
	CostPerUnit pricing.Money `json:"costPerUnit"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Ingredient is one line of a recipe: a material and how much of it.
type Ingredient struct {
	MaterialID uuid.UUID `json:"materialId"`
	Quantity   float64   `json:"quantity"`
}

// Recipe is a named preparation yielding a number of portions.
type Recipe struct {
	ID          uuid.UUID    `json:"id"`
	ProductID   *uuid.UUID   `json:"productId,omitempty"`
	Name        string       `json:"name"`
	YieldQty    int          `json:"yieldQty"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []string     `json:"steps"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Store provides tenant-scoped recipe persistence.
type Store struct {
	Pool *pgxpool.Pool
}

func tenantFrom(ctx context.Context) (string, error) {
	tid, ok := tenant.From(ctx)
	if !ok {
		return "", errors.New("recipes: tenant missing")
	}
	return tid, nil
}

// CreateMaterial inserts a raw material.
func (s *Store) CreateMaterial(ctx context.Context, m Material) (Material, error) {
	if s == nil || s.Pool == nil {
		return Material{}, errors.New("recipes: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Material{}, err
	}
	row := s.Pool.QueryRow(ctx, `INSERT INTO raw_materials (tenant_id, name, unit, cost_per_unit)
VALUES ($1, $2, $3, $4)
RETURNING id, name, unit, cost_per_unit, created_at, updated_at`, tid, m.Name, m.Unit, m.CostPerUnit)
	var out Material
	err = row.Scan(&out.ID, &out.Name, &out.Unit, &out.CostPerUnit, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}

// UpdateMaterial changes a material's name, unit or unit cost.
func (s *Store) UpdateMaterial(ctx context.Context, m Material) (Material, error) {
	if s == nil || s.Pool == nil {
		return Material{}, errors.New("recipes: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Material{}, err
	}
	row := s.Pool.QueryRow(ctx, `UPDATE raw_materials
SET name = $3, unit = $4, cost_per_unit = $5, updated_at = now()
WHERE tenant_id = $1 AND id = $2
RETURNING id, name, unit, cost_per_unit, created_at, updated_at`, tid, m.ID, m.Name, m.Unit, m.CostPerUnit)
	var out Material
	err = row.Scan(&out.ID, &out.Name, &out.Unit, &out.CostPerUnit, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}

// ListMaterials returns all of the tenant's materials by name.
func (s *Store) ListMaterials(ctx context.Context) ([]Material, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("recipes: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT id, name, unit, cost_per_unit, created_at, updated_at
FROM raw_materials WHERE tenant_id = $1 ORDER BY name`, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Material
	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.ID, &m.Name, &m.Unit, &m.CostPerUnit, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMaterials resolves materials by ID for costing.
func (s *Store) GetMaterials(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Material, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("recipes: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT id, name, unit, cost_per_unit, created_at, updated_at
FROM raw_materials WHERE tenant_id = $1 AND id = ANY($2)`, tid, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]Material, len(ids))
	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.ID, &m.Name, &m.Unit, &m.CostPerUnit, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

// Create persists a recipe with its ingredient lines and steps.
func (s *Store) Create(ctx context.Context, r Recipe) (Recipe, error) {
	if s == nil || s.Pool == nil {
		return Recipe{}, errors.New("recipes: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Recipe{}, err
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Recipe{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `INSERT INTO recipes (tenant_id, product_id, name, yield_qty)
VALUES ($1, $2, $3, $4)
RETURNING id, product_id, name, yield_qty, created_at, updated_at`, tid, r.ProductID, r.Name, r.YieldQty)
	stored, err := scanRecipeRow(row)
	if err != nil {
		return Recipe{}, err
	}
	if err := insertLines(ctx, tx, stored.ID, r.Ingredients, r.Steps); err != nil {
		return Recipe{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Recipe{}, err
	}
	stored.Ingredients = r.Ingredients
	stored.Steps = r.Steps
	return stored, nil
}

// Update replaces a recipe's header, ingredient lines and steps.
func (s *Store) Update(ctx context.Context, r Recipe) (Recipe, error) {
	if s == nil || s.Pool == nil {
		return Recipe{}, errors.New("recipes: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Recipe{}, err
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Recipe{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `UPDATE recipes
SET product_id = $3, name = $4, yield_qty = $5, updated_at = now()
WHERE tenant_id = $1 AND id = $2
RETURNING id, product_id, name, yield_qty, created_at, updated_at`, tid, r.ID, r.ProductID, r.Name, r.YieldQty)
	stored, err := scanRecipeRow(row)
	if err != nil {
		return Recipe{}, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM recipe_ingredients WHERE recipe_id = $1`, r.ID); err != nil {
		return Recipe{}, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM recipe_steps WHERE recipe_id = $1`, r.ID); err != nil {
		return Recipe{}, err
	}
	if err := insertLines(ctx, tx, r.ID, r.Ingredients, r.Steps); err != nil {
		return Recipe{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Recipe{}, err
	}
	stored.Ingredients = r.Ingredients
	stored.Steps = r.Steps
	return stored, nil
}

// Get fetches one recipe with lines and steps.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Recipe, error) {
	if s == nil || s.Pool == nil {
		return Recipe{}, errors.New("recipes: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Recipe{}, err
	}
	row := s.Pool.QueryRow(ctx, `SELECT id, product_id, name, yield_qty, created_at, updated_at
FROM recipes WHERE tenant_id = $1 AND id = $2`, tid, id)
	r, err := scanRecipeRow(row)
	if err != nil {
		return Recipe{}, err
	}
	if err := s.loadLines(ctx, &r); err != nil {
		return Recipe{}, err
	}
	return r, nil
}

// List returns the tenant's recipes without lines.
func (s *Store) List(ctx context.Context) ([]Recipe, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("recipes: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT id, product_id, name, yield_qty, created_at, updated_at
FROM recipes WHERE tenant_id = $1 ORDER BY name`, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Recipe
	for rows.Next() {
		r, err := scanRecipeRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes a recipe; lines cascade.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.Pool == nil {
		return errors.New("recipes: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return err
	}
	tag, err := s.Pool.Exec(ctx, `DELETE FROM recipes WHERE tenant_id = $1 AND id = $2`, tid, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanRecipeRow(row pgx.Row) (Recipe, error) {
	var r Recipe
	err := row.Scan(&r.ID, &r.ProductID, &r.Name, &r.YieldQty, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func insertLines(ctx context.Context, tx pgx.Tx, recipeID uuid.UUID, ingredients []Ingredient, steps []string) error {
	for i, ing := range ingredients {
		if _, err := tx.Exec(ctx, `INSERT INTO recipe_ingredients (recipe_id, position, material_id, quantity)
VALUES ($1, $2, $3, $4)`, recipeID, i, ing.MaterialID, ing.Quantity); err != nil {
			return err
		}
	}
	for i, step := range steps {
		if _, err := tx.Exec(ctx, `INSERT INTO recipe_steps (recipe_id, position, instruction)
VALUES ($1, $2, $3)`, recipeID, i, step); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadLines(ctx context.Context, r *Recipe) error {
	rows, err := s.Pool.Query(ctx, `SELECT material_id, quantity
FROM recipe_ingredients WHERE recipe_id = $1 ORDER BY position`, r.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ing Ingredient
		if err := rows.Scan(&ing.MaterialID, &ing.Quantity); err != nil {
			return err
		}
		r.Ingredients = append(r.Ingredients, ing)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	stepRows, err := s.Pool.Query(ctx, `SELECT instruction
FROM recipe_steps WHERE recipe_id = $1 ORDER BY position`, r.ID)
	if err != nil {
		return err
	}
	defer stepRows.Close()
	for stepRows.Next() {
		var step string
		if err := stepRows.Scan(&step); err != nil {
			return err
		}
		r.Steps = append(r.Steps, step)
	}
	return stepRows.Err()
}

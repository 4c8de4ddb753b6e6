// Package tasks turns day plans into dated staff checklists.
package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warung-ops/backend-warung/internal/tenant"
)

// Task statuses.
const (
	StatusPending = "pending"
	StatusDone    = "done"
)

// DateLayout is the wire format for plan dates.
const DateLayout = "2006-01-02"

// Plan schedules batches of one recipe for a given day.
type Plan struct {
	ID        uuid.UUID `json:"id"`
	PlanDate  time.Time `json:"planDate"`
	RecipeID  uuid.UUID `json:"recipeId"`
	Batches   int       `json:"batches"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Task is one checklist row for the kitchen crew.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	PlanID      *uuid.UUID `json:"planId,omitempty"`
	DueDate     time.Time  `json:"dueDate"`
	Position    int        `json:"position"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	CompletedBy *uuid.UUID `json:"completedBy,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Store provides tenant-scoped plan and task persistence.
type Store struct {
	Pool *pgxpool.Pool
}

func tenantFrom(ctx context.Context) (string, error) {
	tid, ok := tenant.From(ctx)
	if !ok {
		return "", errors.New("tasks: tenant missing")
	}
	return tid, nil
}

// CreatePlan schedules a recipe for a day; one row per recipe per day.
func (s *Store) CreatePlan(ctx context.Context, p Plan) (Plan, error) {
	if s == nil || s.Pool == nil {
		return Plan{}, errors.New("tasks: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Plan{}, err
	}
	row := s.Pool.QueryRow(ctx, `INSERT INTO day_plans (tenant_id, plan_date, recipe_id, batches, note)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, plan_date, recipe_id, batches, note, created_at`,
		tid, p.PlanDate, p.RecipeID, p.Batches, p.Note)
	var out Plan
	err = row.Scan(&out.ID, &out.PlanDate, &out.RecipeID, &out.Batches, &out.Note, &out.CreatedAt)
	return out, err
}

// PlansForDate lists a tenant's plans for one day.
func (s *Store) PlansForDate(ctx context.Context, date time.Time) ([]Plan, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("tasks: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT id, plan_date, recipe_id, batches, note, created_at
FROM day_plans WHERE tenant_id = $1 AND plan_date = $2 ORDER BY created_at`, tid, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Plan
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.ID, &p.PlanDate, &p.RecipeID, &p.Batches, &p.Note, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TenantsWithPlans returns the tenants that scheduled anything for date;
// used by the generator, which runs outside any single tenant's context.
func (s *Store) TenantsWithPlans(ctx context.Context, date time.Time) ([]string, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("tasks: store unavailable")
	}
	rows, err := s.Pool.Query(ctx, `SELECT DISTINCT tenant_id FROM day_plans WHERE plan_date = $1`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var tid string
		if err := rows.Scan(&tid); err != nil {
			return nil, err
		}
		out = append(out, tid)
	}
	return out, rows.Err()
}

// InsertTasks appends checklist rows for a plan. Re-running generation
// for the same plan is a no-op thanks to the (plan_id, position) index.
func (s *Store) InsertTasks(ctx context.Context, list []Task) (int, error) {
	if s == nil || s.Pool == nil {
		return 0, errors.New("tasks: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return 0, err
	}
	inserted := 0
	for _, t := range list {
		tag, err := s.Pool.Exec(ctx, `INSERT INTO staff_tasks (tenant_id, plan_id, due_date, position, title)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (plan_id, position) WHERE plan_id IS NOT NULL DO NOTHING`,
			tid, t.PlanID, t.DueDate, t.Position, t.Title)
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListForDate returns the tenant's checklist for one day.
func (s *Store) ListForDate(ctx context.Context, date time.Time) ([]Task, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("tasks: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT id, plan_id, due_date, position, title, status, completed_by, completed_at, created_at
FROM staff_tasks WHERE tenant_id = $1 AND due_date = $2 ORDER BY position, created_at`, tid, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.PlanID, &t.DueDate, &t.Position, &t.Title, &t.Status, &t.CompletedBy, &t.CompletedAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Complete marks a task done by the acting staff member.
func (s *Store) Complete(ctx context.Context, id, staffID uuid.UUID) (Task, error) {
	if s == nil || s.Pool == nil {
		return Task{}, errors.New("tasks: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Task{}, err
	}
	row := s.Pool.QueryRow(ctx, `UPDATE staff_tasks
SET status = 'done', completed_by = $3, completed_at = now()
WHERE tenant_id = $1 AND id = $2
RETURNING id, plan_id, due_date, position, title, status, completed_by, completed_at, created_at`,
		tid, id, staffID)
	var t Task
	err = row.Scan(&t.ID, &t.PlanID, &t.DueDate, &t.Position, &t.Title, &t.Status, &t.CompletedBy, &t.CompletedAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, pgx.ErrNoRows
	}
	return t, err
}

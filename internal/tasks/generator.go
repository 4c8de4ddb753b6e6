package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/warung-ops/backend-warung/internal/events"
	"github.com/warung-ops/backend-warung/internal/lock"
	"github.com/warung-ops/backend-warung/internal/obs"
	"github.com/warung-ops/backend-warung/internal/recipes"
	"github.com/warung-ops/backend-warung/internal/tenant"
)

// TypeGenerate is the asynq task type for day-plan expansion.
const TypeGenerate = "tasks:generate"

const generateLockTTL = 5 * time.Minute

type generatePayload struct {
	Date string `json:"date,omitempty"`
}

// NewGenerateTask builds the asynq task for one date. An empty date
// means "the day the worker picks it up".
func NewGenerateTask(date string) (*asynq.Task, error) {
	body, err := json.Marshal(generatePayload{Date: date})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeGenerate, body), nil
}

// RecipeSource resolves the recipe whose steps become tasks.
type RecipeSource interface {
	Get(ctx context.Context, id uuid.UUID) (recipes.Recipe, error)
}

// PlanStore is the persistence surface the generator needs.
type PlanStore interface {
	TenantsWithPlans(ctx context.Context, date time.Time) ([]string, error)
	PlansForDate(ctx context.Context, date time.Time) ([]Plan, error)
	InsertTasks(ctx context.Context, list []Task) (int, error)
}

// Publisher emits domain events.
type Publisher interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Generator expands day plans into staff task rows. It runs in the
// worker process; the per-tenant lock keeps concurrent workers from
// generating the same day twice.
type Generator struct {
	Store   PlanStore
	Recipes RecipeSource
	Locker  lock.Locker
	Bus     Publisher
	Logger  zerolog.Logger
}

// HandleGenerate is the asynq handler for TypeGenerate.
func (g *Generator) HandleGenerate(ctx context.Context, task *asynq.Task) error {
	var payload generatePayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("tasks: decode payload: %w", err)
		}
	}
	date := time.Now().Truncate(24 * time.Hour)
	if payload.Date != "" {
		parsed, err := time.Parse(DateLayout, payload.Date)
		if err != nil {
			return fmt.Errorf("tasks: invalid date %q: %w", payload.Date, err)
		}
		date = parsed
	}
	return g.GenerateAll(ctx, date)
}

// GenerateAll runs generation for every tenant that planned the date.
func (g *Generator) GenerateAll(ctx context.Context, date time.Time) error {
	tenants, err := g.Store.TenantsWithPlans(ctx, date)
	if err != nil {
		return fmt.Errorf("tasks: list tenants: %w", err)
	}
	var joined error
	for _, tid := range tenants {
		if err := g.GenerateForTenant(tenant.With(ctx, tid), tid, date); err != nil {
			if errors.Is(err, lock.ErrNotAcquired) {
				g.Logger.Info().Str("tenant", tid).Msg("generation already in progress, skipping")
				continue
			}
			joined = errors.Join(joined, fmt.Errorf("tenant %s: %w", tid, err))
		}
	}
	return joined
}

// GenerateForTenant expands one tenant's plans under a redis lock.
func (g *Generator) GenerateForTenant(ctx context.Context, tenantID string, date time.Time) error {
	key := "tasks:generate:" + tenantID + ":" + date.Format(DateLayout)
	return g.Locker.TryLock(ctx, key, generateLockTTL, func(ctx context.Context) error {
		return g.generate(ctx, date)
	})
}

func (g *Generator) generate(ctx context.Context, date time.Time) error {
	plans, err := g.Store.PlansForDate(ctx, date)
	if err != nil {
		return err
	}
	for _, plan := range plans {
		recipe, err := g.Recipes.Get(ctx, plan.RecipeID)
		if err != nil {
			return fmt.Errorf("recipe %s: %w", plan.RecipeID, err)
		}
		list := TasksForPlan(plan, recipe)
		inserted, err := g.Store.InsertTasks(ctx, list)
		if err != nil {
			return fmt.Errorf("plan %s: %w", plan.ID, err)
		}
		if inserted == 0 {
			continue
		}
		if obs.TasksGeneratedTotal != nil {
			obs.TasksGeneratedTotal.Add(float64(inserted))
		}
		if g.Bus != nil {
			payload := map[string]any{"date": date.Format(DateLayout), "count": inserted}
			if _, err := g.Bus.Emit(ctx, events.TopicTasksGenerated, plan.ID, payload); err != nil {
				g.Logger.Error().Err(err).Stringer("plan_id", plan.ID).Msg("tasks.generated event failed")
			}
		}
	}
	return nil
}

// TasksForPlan builds the checklist rows a plan expands to: one row per
// recipe step, prefixed with the batch count.
func TasksForPlan(plan Plan, recipe recipes.Recipe) []Task {
	planID := plan.ID
	out := make([]Task, 0, len(recipe.Steps))
	for i, step := range recipe.Steps {
		out = append(out, Task{
			PlanID:   &planID,
			DueDate:  plan.PlanDate,
			Position: i,
			Title:    fmt.Sprintf("%dx %s: %s", plan.Batches, recipe.Name, step),
		})
	}
	return out
}

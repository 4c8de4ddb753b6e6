package tasks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/warung-ops/backend-warung/internal/events"
	"github.com/warung-ops/backend-warung/internal/lock"
	"github.com/warung-ops/backend-warung/internal/recipes"
	"github.com/warung-ops/backend-warung/internal/tenant"
)

type memPlans struct {
	plans    map[string][]Plan
	inserted map[string][]Task
}

func (m *memPlans) TenantsWithPlans(_ context.Context, _ time.Time) ([]string, error) {
	out := make([]string, 0, len(m.plans))
	for tid := range m.plans {
		out = append(out, tid)
	}
	return out, nil
}

func (m *memPlans) PlansForDate(ctx context.Context, _ time.Time) ([]Plan, error) {
	tid, _ := tenant.From(ctx)
	return m.plans[tid], nil
}

func (m *memPlans) InsertTasks(ctx context.Context, list []Task) (int, error) {
	tid, _ := tenant.From(ctx)
	seen := map[string]bool{}
	for _, existing := range m.inserted[tid] {
		if existing.PlanID != nil {
			seen[fmt.Sprintf("%s:%d", existing.PlanID, existing.Position)] = true
		}
	}
	inserted := 0
	for _, t := range list {
		key := fmt.Sprintf("%s:%d", t.PlanID, t.Position)
		if seen[key] {
			continue
		}
		seen[key] = true
		m.inserted[tid] = append(m.inserted[tid], t)
		inserted++
	}
	return inserted, nil
}

type fakeRecipes map[uuid.UUID]recipes.Recipe

func (f fakeRecipes) Get(_ context.Context, id uuid.UUID) (recipes.Recipe, error) {
	return f[id], nil
}

type recordingBus struct{ topics []string }

func (b *recordingBus) Emit(_ context.Context, topic string, aggregateID uuid.UUID, _ any) (events.Event, error) {
	b.topics = append(b.topics, topic)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID}, nil
}

func testGenerator(t *testing.T, store PlanStore, src RecipeSource, bus Publisher) *Generator {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return &Generator{
		Store:   store,
		Recipes: src,
		Locker:  lock.Locker{R: client},
		Bus:     bus,
		Logger:  zerolog.Nop(),
	}
}

func TestTasksForPlanExpandsSteps(t *testing.T) {
	recipe := recipes.Recipe{
		ID:    uuid.New(),
		Name:  "sambal",
		Steps: []string{"goreng cabai", "ulek halus", "tumis"},
	}
	plan := Plan{ID: uuid.New(), PlanDate: time.Now(), RecipeID: recipe.ID, Batches: 2}

	list := TasksForPlan(plan, recipe)
	require.Len(t, list, 3)
	require.Equal(t, "2x sambal: goreng cabai", list[0].Title)
	require.Equal(t, 2, list[2].Position)
	require.Equal(t, plan.ID, *list[1].PlanID)
}

func TestGenerateAllInsertsAndEmits(t *testing.T) {
	recipe := recipes.Recipe{ID: uuid.New(), Name: "rendang", Steps: []string{"potong daging", "masak santan"}}
	plan := Plan{ID: uuid.New(), PlanDate: time.Now(), RecipeID: recipe.ID, Batches: 1}
	store := &memPlans{
		plans:    map[string][]Plan{"warung-a": {plan}},
		inserted: map[string][]Task{},
	}
	bus := &recordingBus{}
	g := testGenerator(t, store, fakeRecipes{recipe.ID: recipe}, bus)

	require.NoError(t, g.GenerateAll(context.Background(), plan.PlanDate))
	require.Len(t, store.inserted["warung-a"], 2)
	require.Equal(t, []string{events.TopicTasksGenerated}, bus.topics)
}

func TestGenerateAllIdempotentPerPlan(t *testing.T) {
	recipe := recipes.Recipe{ID: uuid.New(), Name: "rendang", Steps: []string{"potong daging"}}
	plan := Plan{ID: uuid.New(), PlanDate: time.Now(), RecipeID: recipe.ID, Batches: 1}
	store := &memPlans{
		plans:    map[string][]Plan{"warung-a": {plan}},
		inserted: map[string][]Task{},
	}
	bus := &recordingBus{}
	g := testGenerator(t, store, fakeRecipes{recipe.ID: recipe}, bus)

	require.NoError(t, g.GenerateAll(context.Background(), plan.PlanDate))
	require.NoError(t, g.GenerateAll(context.Background(), plan.PlanDate))
	require.Len(t, store.inserted["warung-a"], 1)
	// second run inserted nothing, so only one event
	require.Len(t, bus.topics, 1)
}

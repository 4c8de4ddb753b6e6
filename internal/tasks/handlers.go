package tasks

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/warung-ops/backend-warung/internal/common"
)

// Handler exposes checklist and day-plan endpoints. Enqueue is nil in
// deployments without a worker; manual generation then returns 503.
type Handler struct {
	Store    *Store
	Enqueue  *asynq.Client
	Validate *validator.Validate
}

// List returns the checklist for ?date= (default today).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	date := time.Now().Truncate(24 * time.Hour)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(DateLayout, raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid date, want YYYY-MM-DD", nil)
			return
		}
		date = parsed
	}
	list, err := h.Store.ListForDate(r.Context(), date)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list tasks", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": list})
}

// Complete marks one task done by the caller.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid task id", nil)
		return
	}
	uid, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated", nil)
		return
	}
	staffID, err := uuid.Parse(uid)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid identity", nil)
		return
	}
	task, err := h.Store.Complete(r.Context(), id, staffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "task not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to complete task", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": task})
}

// CreatePlan schedules a recipe for a day.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PlanDate string    `json:"planDate" validate:"required"`
		RecipeID uuid.UUID `json:"recipeId" validate:"required"`
		Batches  int       `json:"batches" validate:"gt=0"`
		Note     string    `json:"note"`
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
	date, err := time.Parse(DateLayout, payload.PlanDate)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid planDate, want YYYY-MM-DD", nil)
		return
	}
	plan, err := h.Store.CreatePlan(r.Context(), Plan{
		PlanDate: date,
		RecipeID: payload.RecipeID,
		Batches:  payload.Batches,
		Note:     payload.Note,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "recipe already planned for that day", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create plan", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": plan})
}

// Generate enqueues generation for ?date= (default today) so an admin
// can re-run expansion without waiting for the nightly cron.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	if h.Enqueue == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "WORKER_UNAVAILABLE", "background worker not configured", nil)
		return
	}
	date := r.URL.Query().Get("date")
	if date != "" {
		if _, err := time.Parse(DateLayout, date); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid date, want YYYY-MM-DD", nil)
			return
		}
	}
	task, err := NewGenerateTask(date)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to build task", nil)
		return
	}
	info, err := h.Enqueue.EnqueueContext(r.Context(), task, asynq.MaxRetry(3))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to enqueue generation", nil)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]any{"taskId": info.ID, "queue": info.Queue}})
}

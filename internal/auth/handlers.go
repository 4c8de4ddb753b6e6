package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/warung-ops/backend-warung/internal/common"
)

// Handler exposes login and staff administration endpoints.
type Handler struct {
	Svc      *Service
	Store    *Store
	Validate *validator.Validate
}

// Login exchanges credentials for an access token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth service not configured", nil)
		return
	}
	var payload struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
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
	token, staff, err := h.Svc.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"accessToken": token,
		"staff":       staff,
	}})
}

// Me returns the authenticated staff account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth store not configured", nil)
		return
	}
	uid, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated", nil)
		return
	}
	id, err := uuid.Parse(uid)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid identity", nil)
		return
	}
	staff, err := h.Store.Get(r.Context(), id)
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "staff not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": staff})
}

// ListStaff returns the tenant's staff accounts.
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	staff, err := h.Store.List(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list staff", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": staff})
}

// CreateStaff registers a new account with a hashed password.
func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth store not configured", nil)
		return
	}
	var payload struct {
		Username string `json:"username" validate:"required,min=3"`
		FullName string `json:"fullName" validate:"required"`
		Role     string `json:"role" validate:"required,oneof=owner manager staff"`
		Password string `json:"password" validate:"required,min=8"`
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
	hash, err := HashPassword(payload.Password)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to hash password", nil)
		return
	}
	created, err := h.Store.Create(r.Context(), Staff{
		Username:     payload.Username,
		FullName:     payload.FullName,
		Role:         payload.Role,
		PasswordHash: hash,
		Active:       true,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "username already taken", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create staff", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// SetStaffActive enables or disables an account.
func (h *Handler) SetStaffActive(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid staff id", nil)
		return
	}
	var payload struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Store.SetActive(r.Context(), id, payload.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "staff not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update staff", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": id, "active": payload.Active}})
}

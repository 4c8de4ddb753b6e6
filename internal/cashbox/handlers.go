package cashbox

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/warung-ops/backend-warung/internal/common"
	"github.com/warung-ops/backend-warung/internal/pricing"
)

// Handler exposes the drawer session endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

func (h *Handler) actor(r *http.Request) (uuid.UUID, bool) {
	uid, ok := common.UserID(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(uid)
	return id, err == nil
}

func sessionID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
	case errors.Is(err, ErrSessionClosed):
		common.JSONError(w, http.StatusConflict, "SESSION_CLOSED", "session already closed", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cashbox operation failed", nil)
	}
}

// Open starts a session.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cashbox not configured", nil)
		return
	}
	actor, ok := h.actor(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated", nil)
		return
	}
	var payload struct {
		OpeningFloat int64  `json:"openingFloat" validate:"gte=0"`
		Note         string `json:"note"`
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
	sess, err := h.Svc.Open(r.Context(), actor, pricing.Money(payload.OpeningFloat), payload.Note)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": sess})
}

// AddEntry appends a cash movement.
func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cashbox not configured", nil)
		return
	}
	id, err := sessionID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid session id", nil)
		return
	}
	var payload struct {
		Kind      string `json:"kind" validate:"required,oneof=sale payout deposit withdrawal"`
		Amount    int64  `json:"amount" validate:"gt=0"`
		Reference string `json:"reference"`
		Note      string `json:"note"`
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
	entry, err := h.Svc.AddEntry(r.Context(), Entry{
		SessionID: id,
		Kind:      payload.Kind,
		Amount:    pricing.Money(payload.Amount),
		Reference: payload.Reference,
		Note:      payload.Note,
	})
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": entry})
}

// Close settles the session and returns the reconciliation summary.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cashbox not configured", nil)
		return
	}
	actor, ok := h.actor(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated", nil)
		return
	}
	id, err := sessionID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid session id", nil)
		return
	}
	var payload struct {
		CountedAmount int64 `json:"countedAmount" validate:"gte=0"`
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
	summary, err := h.Svc.Close(r.Context(), id, actor, pricing.Money(payload.CountedAmount))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

// Summary returns the running reconciliation for a session.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cashbox not configured", nil)
		return
	}
	id, err := sessionID(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid session id", nil)
		return
	}
	summary, err := h.Svc.Summary(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

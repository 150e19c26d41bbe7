// Package api implements the HTTP handlers that expose the task engine:
// trigger invocation and task status queries.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/davidhaber/taskengine/internal/api/shared"
	"github.com/davidhaber/taskengine/internal/task"
	"github.com/davidhaber/taskengine/internal/trigger"
	"github.com/go-chi/chi/v5"
)

// TriggerHandler handles trigger invocation requests.
type TriggerHandler struct {
	gateway *trigger.Gateway
	logger  *slog.Logger
}

// NewTriggerHandler creates a TriggerHandler.
func NewTriggerHandler(gateway *trigger.Gateway, logger *slog.Logger) *TriggerHandler {
	return &TriggerHandler{
		gateway: gateway,
		logger:  logger.With("handler", "trigger"),
	}
}

// Invoke handles POST /api/triggers/{name}. The request body is the
// trigger payload as a JSON object. On success the created task is
// queued and its ID returned; validation failures create no task.
func (h *TriggerHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "trigger name is required")
		return
	}

	payload, err := shared.DecodePayload(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	result, err := h.gateway.HandleTrigger(r.Context(), name, payload)
	if err != nil {
		switch {
		case errors.Is(err, trigger.ErrTriggerNotFound):
			shared.RespondWithError(w, r, http.StatusNotFound, err.Error())
		case errors.Is(err, trigger.ErrMissingField):
			shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, task.ErrQueueFull):
			shared.RespondWithError(w, r, http.StatusServiceUnavailable, "task queue is full, try again later")
		default:
			h.logger.Error("trigger invocation failed", "trigger", name, "error", err)
			shared.RespondWithError(w, r, http.StatusInternalServerError, "failed to process trigger")
		}
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, result)
}

// List handles GET /api/triggers, returning the registered trigger
// definitions with their invocation statistics.
func (h *TriggerHandler) List(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.gateway.Triggers())
}

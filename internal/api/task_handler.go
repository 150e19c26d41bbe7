package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/davidhaber/taskengine/internal/api/shared"
	"github.com/davidhaber/taskengine/internal/task"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TaskHandler serves task status queries from the status store.
type TaskHandler struct {
	engine *task.Engine
	logger *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(engine *task.Engine, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		engine: engine,
		logger: logger.With("handler", "task"),
	}
}

// Get handles GET /api/tasks/{id}. A task is queryable from submission
// until its terminal record ages out of the retention window; terminal
// failures always carry a non-empty error field.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "invalid task id")
		return
	}

	t, ok := h.engine.Store().Get(id)
	if !ok {
		shared.RespondWithError(w, r, http.StatusNotFound, "task not found")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, t)
}

// List handles GET /api/tasks with optional status, type, source, and
// limit query parameters.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := task.StatusFilter{
		Status: task.Status(r.URL.Query().Get("status")),
		Type:   r.URL.Query().Get("type"),
		Source: task.Source(r.URL.Query().Get("source")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	shared.RespondWithJSON(w, r, http.StatusOK, h.engine.Store().List(filter))
}

// Stats handles GET /api/stats, returning queue depth and per-status
// record counts.
func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.engine.Stats())
}

package main

import (
	"net/http"

	"github.com/davidhaber/taskengine/internal/api"
	apiMiddleware "github.com/davidhaber/taskengine/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	triggerHandler := api.NewTriggerHandler(app.gateway, app.logger)
	taskHandler := api.NewTaskHandler(app.engine, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/triggers/{name}", triggerHandler.Invoke)
		r.Get("/triggers", triggerHandler.List)

		r.Get("/tasks/{id}", taskHandler.Get)
		r.Get("/tasks", taskHandler.List)

		r.Get("/stats", taskHandler.Stats)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}

package main

import (
	"encoding/json"
	"net/http"

	"github.com/englishprint/papergen/internal/task"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type healthResponse struct {
	Status        string `json:"status"`
	Running       int    `json:"running"`
	Pending       int    `json:"pending"`
	Processing    int    `json:"processing"`
	MaxConcurrent int    `json:"max_concurrent"`
}

// routes builds the router. The scheduler has no REST surface; only the
// health endpoint is served.
func (app *application) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", app.handleHealth)

	return r
}

func (app *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		Running:       app.scheduler.Running(),
		Pending:       len(app.controller.Tasks(task.Filter{Statuses: []task.Status{task.StatusPending}})),
		Processing:    len(app.controller.Tasks(task.Filter{Statuses: []task.Status{task.StatusProcessing}})),
		MaxConcurrent: app.controller.MaxConcurrent(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		app.logger.Error("failed to write health check response", "error", err)
	}
}

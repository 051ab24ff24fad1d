package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new HTTP router with configured routes, middleware, and handlers.
// It sets up the media API routes, liveness check, and Prometheus metrics endpoint.
func NewRouter(taskService TaskServiceI, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	taskHandler := NewTaskHandler(taskService, logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/info", taskHandler.Info)
		r.Post("/download", taskHandler.Download)
		r.Get("/progress/{taskID}", taskHandler.Progress)
		r.Get("/files/{fileID}", taskHandler.ServeFile)
		r.Get("/health", taskHandler.Health)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

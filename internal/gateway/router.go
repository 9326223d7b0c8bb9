package gateway

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/swgestor/backend/internal/config"
	"github.com/swgestor/backend/internal/httpx"
)

// ServiceName identifies the gateway in logs and metrics.
const ServiceName = "gateway"

// NewRouter builds the gateway's router: aggregation endpoints plus the
// reverse-proxy route table matching the downstream services' surfaces.
func NewRouter(cfg config.Gateway, log zerolog.Logger) (*chi.Mux, error) {
	projects, err := newProxy(cfg.ProjectsURL, "projects", log)
	if err != nil {
		return nil, fmt.Errorf("projects proxy: %w", err)
	}
	tasks, err := newProxy(cfg.TasksURL, "tasks", log)
	if err != nil {
		return nil, fmt.Errorf("tasks proxy: %w", err)
	}
	notifications, err := newProxy(cfg.NotifyURL, "notifications", log)
	if err != nil {
		return nil, fmt.Errorf("notifications proxy: %w", err)
	}

	agg := NewAggregator(cfg.ProjectsURL, cfg.TasksURL, cfg.NotifyURL, log)

	r := chi.NewRouter()
	r.Use(httpx.RequestLogger(ServiceName, log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.ClientOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/health", agg.Health)
	r.Get("/api/stats", agg.StatsHandler)

	// Proxy table. The tasks service owns the nested per-project task
	// routes, so /api/projects/{id}/tasks forwards there, not to projects.
	r.Handle("/api/projects", projects)
	r.Handle("/api/projects/{id}", projects)
	r.Handle("/api/projects/{id}/tasks", tasks)
	r.Handle("/api/tasks/{id}", tasks)
	r.Handle("/api/chat", notifications)
	r.Handle("/api/chat/{room}", notifications)
	r.Handle("/api/notify", notifications)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Error(w, http.StatusNotFound, "not found", "unknown route")
	})

	return r, nil
}

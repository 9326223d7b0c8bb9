package notify

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/swgestor/backend/internal/httpx"
	"github.com/swgestor/backend/internal/hub"
)

// NewRouter builds the notification service's router. clientOrigin restricts
// both CORS and websocket upgrades.
func NewRouter(h *hub.Hub, clientOrigin string, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(httpx.RequestLogger(ServiceName, log))
	r.Use(chimw.Recoverer)
	r.Use(httpx.MaxBodySize(1 << 20)) // 1MB, same cap the original service set
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{clientOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	handler := NewHandler(h, log)
	origin := httpx.NewOriginChecker(clientOrigin)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", handler.Health)
	r.Get("/chat/{room}", handler.History)
	r.Post("/chat", handler.SendChat)
	r.Post("/notify", handler.Notify)
	r.Get("/ws", handler.Websocket(origin))

	return r
}

// Package api assembles the HTTP router: middleware, documentation and the
// ticket and task routes.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/scoracle-tickets/internal/api/handler"
	"github.com/albapepper/scoracle-tickets/internal/config"

	// Registers the OpenAPI document served at /docs/doc.json.
	_ "github.com/albapepper/scoracle-tickets/docs"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(h *handler.Handler, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Authorization", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Routes ---
	r.Get("/", h.Root)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/collect", h.HealthCheckCollect)
	})

	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tickets", h.ListTickets)
		r.Get("/tickets/{id}", h.GetTicket)

		// Called by cron and the task queue.
		r.Group(func(r chi.Router) {
			r.Use(RequireToken(cfg.TaskAPIToken))
			r.Post("/collect", h.RunCollection)
			r.Post("/notifications/dispatch", h.DispatchNotification)
			r.Post("/notifications/process-pending", h.ProcessPending)
		})
	})

	return r
}

/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     request logging
  2. Recoverer:  panic recovery (500 instead of crash)
  3. RequestID:  unique ID per request for tracing
  4. CORS:       cross-origin requests for a frontend

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/groups", func(r chi.Router) {
			r.Post("/", h.CreateGroup)
			r.Get("/{id}", h.GetGroup)
			r.Get("/{id}/members", h.GroupDashboard)
			r.Post("/{id}/members", h.Enroll)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/{id}", h.GetStatement)
			r.Put("/{id}/plan", h.UpdatePlan)
			r.Get("/{id}/schedule", h.GetSchedule)
			r.Post("/{id}/collections", h.RecordCollection)
			r.Post("/{id}/collections/bulk", h.RecordBulk)
		})

		r.Route("/collections", func(r chi.Router) {
			r.Put("/{id}", h.EditCollection)
			r.Delete("/{id}", h.VoidCollection)
		})
	})

	return r
}

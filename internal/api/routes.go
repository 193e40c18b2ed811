package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler, apiKey, cronSecret string) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required)
		r.Get("/health", h.Health)

		// Protected routes (service API key)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(apiKey))
			r.Post("/sessions", h.CreateSession)
			r.Get("/sessions", h.ListSessions)
			r.Get("/dashboard", h.Dashboard)
			r.Post("/checkins", h.CreateCheckin)
			r.Post("/analysis", h.RunAnalysis)
			r.Get("/analysis", h.GetAnalysis)
			r.Post("/reflect", h.Reflect)
			r.Put("/profiles", h.UpsertProfile)
		})

		// Scheduler routes (cron secret, separate credential)
		r.Group(func(r chi.Router) {
			r.Use(CronAuthMiddleware(cronSecret))
			r.Post("/email/morning", h.MorningEmail)
		})
	})

	return r
}

package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/summitworks/delivery-monitor/internal/webhook"
)

// SetupRoutes configures the router. The webhook endpoint sits outside
// /api/v1: it authenticates with HMAC signatures, not whatever protects
// the admin surface.
func SetupRoutes(h *Handlers, wh *webhook.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Post("/webhooks/email", wh.HandleEvents)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/gate/{email}", h.CheckGate)
		r.Post("/send", h.SendMessage)

		r.Route("/suppressions", func(r chi.Router) {
			r.Get("/", h.ListSuppressions)
			r.Post("/", h.AddSuppression)
			r.Get("/stats", h.GetSuppressionStats)
			r.Get("/{email}", h.GetSuppression)
			r.Delete("/{email}", h.RemoveSuppression)
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", h.ListDeliveries)
			r.Get("/{messageID}", h.GetDelivery)
		})
	})

	return r
}

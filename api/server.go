/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     One zerolog line per request
  3. Metrics:    Prometheus request counter and latency histogram
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the planning frontend

ROUTE GROUPS:
  /api/weeks            Week grid
  /api/campaigns/*      Campaigns, distribution, cell edits, rollups
  /api/adsets/*         Ad sets
  /api/configurations/* Budget configurations
  /api/validate/*       Stateless validation
  /api/dashboard        Fleet fan-out
  /api/audit            Balance audit
  /api/scenarios/*      Demo scenarios
  /metrics              Prometheus scrape endpoint
  /healthz              Liveness

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Metrics and request logging
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(h.Metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", h.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/weeks", h.ListWeeks)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Post("/", h.CreateCampaign)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetCampaign)
				r.Put("/", h.UpdateCampaign)
				r.Delete("/", h.DeleteCampaign)
				r.Post("/distribute", h.DistributeCampaign)
				r.Put("/weeks/{week}", h.UpdateCampaignWeek)
				r.Get("/rollup", h.GetCampaignRollup)
				r.Get("/variance", h.GetCampaignVariance)
				r.Get("/adsets", h.ListAdSets)
				r.Post("/adsets", h.CreateAdSet)
			})
		})

		r.Route("/adsets/{id}", func(r chi.Router) {
			r.Get("/", h.GetAdSet)
			r.Put("/", h.UpdateAdSet)
			r.Delete("/", h.DeleteAdSet)
			r.Put("/weeks/{week}", h.UpdateAdSetWeek)
		})

		r.Route("/configurations", func(r chi.Router) {
			r.Get("/", h.ListConfigurations)
			r.Post("/", h.CreateConfiguration)
			r.Get("/{id}", h.GetConfiguration)
			r.Put("/{id}", h.UpdateConfiguration)
			r.Delete("/{id}", h.DeleteConfiguration)
		})

		r.Post("/validate/percentages", h.ValidatePercentages)

		r.Get("/dashboard", h.GetDashboard)
		r.Get("/audit", h.GetAudit)
		r.Post("/audit/run", h.RunAudit)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router: middleware, the unauthenticated
// health endpoint, and the tenant-scoped /api group.
func SetupRoutes(h *Handlers, hc *HealthChecker, devMode bool) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://app.prospectpipeline.io", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if hc != nil {
		r.Get("/health", hc.HandleHealth)
	} else {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(TenantMiddleware(devMode))

		r.Route("/leads/{id}", func(r chi.Router) {
			r.Get("/", h.GetLead)
			r.Post("/rerun", h.RerunStep)
			r.Get("/memory", h.GetLeadMemory)
		})

		r.Route("/sequences/{id}", func(r chi.Router) {
			r.Get("/", h.GetSequence)
			r.Put("/content", h.UpdateSequenceContent)
			r.Post("/ready", h.MarkSequenceReady)
		})

		r.Get("/brands", h.ListBrands)

		r.Get("/settings", h.GetSettings)
		r.Post("/settings", h.UpdateSettings)
	})

	return r
}

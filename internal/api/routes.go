package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes builds the router. Routes for nil services are skipped.
func SetupRoutes(svc Services, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", AccountHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if svc.Health != nil {
		r.Get("/health", svc.Health.HandleHealth)
		r.Get("/health/live", svc.Health.HandleLiveness)
		r.Get("/health/ready", svc.Health.HandleReadiness)
	} else {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}

	r.Route("/api", func(r chi.Router) {
		// The channel cannot send our headers; its account is in the path.
		if svc.Inbound != nil {
			NewWebhookAPI(svc.Inbound).RegisterRoutes(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(TenantMiddleware)
			if svc.Segmentations != nil {
				NewSegmentationAPI(svc.Segmentations).RegisterRoutes(r)
			}
			if svc.Campaigns != nil {
				NewCampaignAPI(svc.Campaigns).RegisterRoutes(r)
			}
			if svc.Channel != nil {
				NewChannelAPI(svc.Channel).RegisterRoutes(r)
			}
			if svc.Analytics != nil {
				NewAnalyticsAPI(svc.Analytics).RegisterRoutes(r)
			}
		})
	})

	return r
}

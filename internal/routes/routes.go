package routes

import (
	"net/http"

	"photoreviver/internal/config"
	"photoreviver/internal/handler"
	"photoreviver/internal/logger"
	"photoreviver/internal/middleware"
	"photoreviver/internal/repository"
	hub "photoreviver/internal/service/websocket"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the services the HTTP layer calls into. Repo is nil when
// history is disabled, which leaves the /api/restorations routes unmounted.
type Dependencies struct {
	Restorer handler.Restorer
	Hub      *hub.HubService
	Repo     repository.RestorationRepository
	Config   *config.Config
	Logger   *logger.Logger
}

// SetupRoutes registers the API endpoints and wraps them with middleware.
func SetupRoutes(deps Dependencies) http.Handler {
	cfg, logger := deps.Config, deps.Logger
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger.Component("http")))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.APIKeyHeader, handler.JobIDHeader},
		ExposedHeaders:   []string{"Content-Disposition", handler.JobIDHeader, handler.RestorationIDHeader, "X-Cache"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.APIKey(cfg.Security.APIKey))

	r.Get("/", handler.RootHandler())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handler.HealthHandler())
		r.Get("/progress", handler.ProgressWebsocketHandler(deps.Hub, logger))

		r.Group(func(r chi.Router) {
			if !cfg.Security.RateLimitDisabled {
				r.Use(httprate.Limit(
					cfg.Security.RateLimitRequests,
					cfg.Security.RateLimitWindow,
					httprate.WithKeyFuncs(httprate.KeyByRealIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
						w.Header().Set("Content-Type", "application/json")
						w.WriteHeader(http.StatusTooManyRequests)
						_, _ = w.Write([]byte(`{"detail":"Too many requests, please slow down"}`))
					}),
				))
			}
			r.Post("/restore", handler.RestoreHandler(deps.Restorer, cfg, logger))
			r.Post("/restore-step", handler.RestoreStepHandler(deps.Restorer, cfg, logger))
		})

		if deps.Repo != nil {
			r.Route("/restorations", func(r chi.Router) {
				r.Get("/", handler.ListRestorationsHandler(deps.Repo, cfg, logger))
				r.Delete("/", handler.ClearRestorationsHandler(deps.Repo, cfg, logger))
				r.Get("/stats", handler.RestorationStatsHandler(deps.Repo, logger))
				r.Get("/{id}", handler.GetRestorationHandler(deps.Repo, logger))
				r.Get("/{id}/image", handler.RestorationImageHandler(deps.Repo, logger, false))
				r.Get("/{id}/thumbnail", handler.RestorationImageHandler(deps.Repo, logger, true))
				r.Delete("/{id}", handler.DeleteRestorationHandler(deps.Repo, logger))
			})
		}
	})

	// Log endpoints can read and truncate server logs, so they only exist
	// behind an API key.
	if cfg.Security.APIKey != "" {
		r.Get("/logs/{level}", handler.ShowLogsHandler(logger))
		r.Post("/logs/{level}/clear", handler.ClearLogsHandler(logger))
	}

	return r
}

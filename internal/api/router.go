// Package api provides the HTTP API of placefinder.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/placefinder/placefinder/internal/api/handler"
	"github.com/placefinder/placefinder/internal/api/middleware"
	"github.com/placefinder/placefinder/internal/explorer"
	"github.com/placefinder/placefinder/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Sessions  *explorer.Store
	Providers *resilience.Registry
	// Ops is created from the fields above when nil; pass one to call Drain on shutdown.
	Ops *handler.OpsHandler

	// RateLimitPerMinute is the per-session budget of each client (default 120).
	RateLimitPerMinute int
	RequireTLS         bool
}

// NewRouter creates the chi router with all API routes.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "placefinder-api"
	}
	perMinute := cfg.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = 120
	}

	// Global middleware, in order
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := cfg.Ops
	if opsHandler == nil {
		var sessions handler.SessionCounter
		if cfg.Sessions != nil {
			sessions = cfg.Sessions
		}
		opsHandler = handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Providers, sessions)
	}
	sessionHandler := handler.NewSessionHandler(cfg.Sessions, cfg.Logger)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Use(middleware.RequireJSON)
			r.With(middleware.RateLimitByIP(middleware.SessionCreateRateLimit)).Post("/", sessionHandler.Create)

			r.Route("/{sessionId}", func(r chi.Router) {
				r.Use(middleware.RateLimitBySession(middleware.PerMinute(perMinute)))

				r.Get("/", sessionHandler.Get)
				r.Delete("/", sessionHandler.Delete)
				r.Post("/search", sessionHandler.Search)
				r.Put("/selection", sessionHandler.Select)
				r.Delete("/selection", sessionHandler.Deselect)
				r.Get("/selection/preview", sessionHandler.Preview)
				r.Post("/directions", sessionHandler.Directions)
				r.Delete("/route", sessionHandler.ClearRoute)
				r.Get("/map", sessionHandler.MapView)
			})
		})
	})

	return r
}

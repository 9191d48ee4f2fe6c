// Package main provides the entrypoint for the placefinder API server.
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/placefinder/placefinder/internal/api"
	"github.com/placefinder/placefinder/internal/api/handler"
	"github.com/placefinder/placefinder/internal/api/middleware"
	"github.com/placefinder/placefinder/internal/config"
	"github.com/placefinder/placefinder/internal/explorer"
	"github.com/placefinder/placefinder/internal/geo"
	"github.com/placefinder/placefinder/internal/places"
	"github.com/placefinder/placefinder/internal/places/nominatim"
	"github.com/placefinder/placefinder/internal/preview/mapillary"
	"github.com/placefinder/placefinder/internal/provider/resilience"
	"github.com/placefinder/placefinder/internal/routing"
	"github.com/placefinder/placefinder/internal/routing/openrouteservice"
	"github.com/placefinder/placefinder/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "placefinder-api"

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup structured logging; JSON in production, console output elsewhere
	var out io.Writer = os.Stdout
	if !cfg.IsProduction() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	log := zerolog.New(out).
		Level(cfg.LogLevel).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting placefinder API")

	// Initialize OpenTelemetry
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Float64("sample_ratio", cfg.Telemetry.SampleRatio).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	// Providers share one registry so /v1/ops/status reports every circuit.
	registry := resilience.NewRegistry()

	placeService := places.NewService(places.ServiceConfig{
		Provider: nominatim.NewClient(nominatim.ClientConfig{
			BaseURL:   cfg.Providers.NominatimBaseURL,
			UserAgent: cfg.Providers.NominatimUserAgent,
			Email:     cfg.Providers.NominatimEmail,
			Bounded:   cfg.Providers.NominatimBounded,
			Timeout:   cfg.Providers.Timeout,
			Registry:  registry,
			Logger:    log,
		}),
		Logger:  log,
		Metrics: providerMetrics,
		Limit:   cfg.Explorer.SearchLimit,
	})
	log.Info().
		Str("provider", placeService.ProviderName()).
		Msg("place search initialized")

	if cfg.Providers.ORSAPIKey == "" {
		log.Warn().Msg("ORS_API_KEY not set - directions will find no path")
	}
	routeService := routing.NewService(routing.ServiceConfig{
		Provider: openrouteservice.NewClient(openrouteservice.ClientConfig{
			APIKey:   cfg.Providers.ORSAPIKey,
			BaseURL:  cfg.Providers.ORSBaseURL,
			Timeout:  cfg.Providers.Timeout,
			Registry: registry,
			Logger:   log,
		}),
		Logger:         log,
		Metrics:        providerMetrics,
		DefaultProfile: cfg.Explorer.Profile,
	})
	log.Info().
		Str("provider", routeService.ProviderName()).
		Str("profile", string(cfg.Explorer.Profile)).
		Msg("routing initialized")

	// A nil *mapillary.Client must not reach the interface field.
	var scenes explorer.SceneFinder
	if cfg.Providers.MapillaryToken != "" {
		scenes = mapillary.NewClient(mapillary.ClientConfig{
			AccessToken: cfg.Providers.MapillaryToken,
			BaseURL:     cfg.Providers.MapillaryBaseURL,
			Timeout:     cfg.Providers.Timeout,
			Registry:    registry,
			Logger:      log,
		})
		log.Info().Msg("scene previews initialized")
	} else {
		log.Warn().Msg("MAPILLARY_ACCESS_TOKEN not set - previews disabled")
	}

	origin := cfg.Explorer.Origin()
	span := cfg.Explorer.RegionSpanMeters
	store := explorer.NewStore(explorer.StoreConfig{
		Session: explorer.SessionConfig{
			Places:       placeService,
			Routes:       routeService,
			Scenes:       scenes,
			Origin:       origin,
			SearchRegion: geo.NewRegion(origin, span, span),
			Profile:      cfg.Explorer.Profile,
			SearchLimit:  cfg.Explorer.SearchLimit,
		},
		IdleTTL:     cfg.Explorer.SessionIdleTTL,
		MaxSessions: cfg.Explorer.MaxSessions,
		Logger:      log,
	})
	go store.Run(ctx)
	log.Info().
		Float64("origin_lat", origin.Lat).
		Float64("origin_lon", origin.Lon).
		Dur("idle_ttl", cfg.Explorer.SessionIdleTTL).
		Int("max_sessions", cfg.Explorer.MaxSessions).
		Msg("session store initialized")

	ops := handler.NewOpsHandler(Version, BuildTime, registry, store)

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		Sessions:           store,
		Providers:          registry,
		Ops:                ops,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequireTLS:         cfg.RequireTLS,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	stop()

	log.Info().Msg("shutting down server")
	ops.Drain()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

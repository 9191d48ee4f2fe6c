package routing

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/placefinder/placefinder/internal/geo"
	"github.com/placefinder/placefinder/internal/provider/cache"
	"github.com/placefinder/placefinder/internal/telemetry"
)

const operationDirections = "directions"

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger
	Metrics  *telemetry.ProviderMetrics

	// DefaultProfile applies when a request has none (default: driving-car).
	DefaultProfile Profile

	// CacheTTL is how long directions stay fresh (default: 5 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL is how long directions may stand in for a failed
	// provider call (default: 15 minutes).
	StaleIfErrorTTL time.Duration

	// CacheGridSize is the cell size in degrees that endpoints snap to before
	// lookup (default: 0.001, about 110 m). Endpoints in the same cells share
	// directions.
	CacheGridSize float64

	// MaxCacheEntries bounds the cache (default: 2000).
	MaxCacheEntries int
}

// Service fetches directions through a cache keyed on snapped endpoints.
type Service struct {
	provider       Provider
	logger         zerolog.Logger
	metrics        *telemetry.ProviderMetrics
	defaultProfile Profile
	gridSize       float64
	cache          *cache.Cache[*DirectionsResponse]
}

// NewService creates a routing service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = ProfileDrive
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.StaleIfErrorTTL <= 0 {
		cfg.StaleIfErrorTTL = 15 * time.Minute
	}
	if cfg.CacheGridSize <= 0 {
		cfg.CacheGridSize = 0.001
	}
	if cfg.MaxCacheEntries <= 0 {
		cfg.MaxCacheEntries = 2000
	}

	return &Service{
		provider:       cfg.Provider,
		logger:         cfg.Logger.With().Str("provider", cfg.Provider.Name()).Logger(),
		metrics:        cfg.Metrics,
		defaultProfile: cfg.DefaultProfile,
		gridSize:       cfg.CacheGridSize,
		cache: cache.New[*DirectionsResponse](cache.Config{
			FreshFor:   cfg.CacheTTL,
			StaleFor:   cfg.StaleIfErrorTTL,
			MaxEntries: cfg.MaxCacheEntries,
		}),
	}
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// Path returns the primary route from origin to destination as a drawable
// path. A provider answer without routes is reported as ErrNoRouteFound.
func (s *Service) Path(ctx context.Context, req DirectionsRequest) (*Path, error) {
	req = s.withDefaults(req)

	resp, err := s.GetDirections(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Routes) == 0 || len(resp.Routes[0].Geometry) == 0 {
		return nil, &Error{
			Provider: resp.Provider,
			Code:     "NO_ROUTE",
			Message:  "provider returned no routes",
			Err:      ErrNoRouteFound,
		}
	}
	return NewPath(resp.Routes[0], req.Profile), nil
}

// GetDirections returns routes between two points, from the cache when the
// snapped endpoints were asked for recently. Concurrent identical requests
// share one provider call.
func (s *Service) GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	req = s.withDefaults(req)
	if err := s.validate(req); err != nil {
		return nil, err
	}

	key := s.cacheKey(req)
	if resp, ok := s.cache.Fresh(key); ok {
		s.metrics.RecordCacheHit(ctx, s.provider.Name(), operationDirections)
		return resp, nil
	}
	s.metrics.RecordCacheMiss(ctx, s.provider.Name(), operationDirections)

	resp, stale, err := s.cache.Load(ctx, key, func(ctx context.Context) (*DirectionsResponse, error) {
		start := time.Now()
		resp, err := s.provider.GetDirections(ctx, req)
		s.metrics.RecordRequest(ctx, s.provider.Name(), operationDirections, time.Since(start), err)
		return resp, err
	})

	log := s.logger.With().Str("cache_key", key).Logger()
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("directions request failed")
		return nil, err
	case stale:
		log.Warn().Time("fetched_at", resp.FetchedAt).Msg("provider failed, serving stale directions")
	default:
		log.Debug().Int("route_count", len(resp.Routes)).Msg("fetched directions")
	}
	return resp, nil
}

func (s *Service) withDefaults(req DirectionsRequest) DirectionsRequest {
	if req.Profile == "" {
		req.Profile = s.defaultProfile
	}
	return req
}

func (s *Service) validate(req DirectionsRequest) error {
	if !slices.Contains(s.provider.SupportedProfiles(), req.Profile) {
		return &Error{
			Provider: s.provider.Name(),
			Code:     "UNSUPPORTED_PROFILE",
			Message:  fmt.Sprintf("profile %q is not supported", req.Profile),
			Err:      ErrUnsupportedProfile,
		}
	}
	for _, end := range []struct {
		code  string
		label string
		c     geo.Coordinate
	}{
		{"INVALID_ORIGIN", "origin", req.Origin},
		{"INVALID_DESTINATION", "destination", req.Destination},
	} {
		if end.c.Validate() != nil {
			return &Error{
				Provider: s.provider.Name(),
				Code:     end.code,
				Message:  "invalid " + end.label + " coordinates",
				Err:      ErrInvalidCoordinates,
			}
		}
	}
	return nil
}

// cacheKey snaps both endpoints to the grid: profile|lat,lon|lat,lon|alternatives.
func (s *Service) cacheKey(req DirectionsRequest) string {
	snap := func(v float64) float64 { return math.Floor(v/s.gridSize) * s.gridSize }
	return fmt.Sprintf("%s|%.5f,%.5f|%.5f,%.5f|%d",
		req.Profile,
		snap(req.Origin.Lat), snap(req.Origin.Lon),
		snap(req.Destination.Lat), snap(req.Destination.Lon),
		req.MaxAlternatives,
	)
}

// InvalidateCache drops every cached answer.
func (s *Service) InvalidateCache() {
	s.cache.Purge()
}

// CacheStats reports the cache contents for the provider.
type CacheStats struct {
	Provider string
	cache.Stats
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	return CacheStats{Provider: s.provider.Name(), Stats: s.cache.Stats()}
}

package places

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/placefinder/placefinder/internal/provider/cache"
	"github.com/placefinder/placefinder/internal/telemetry"
)

// DefaultLimit caps how many places a search returns.
const DefaultLimit = 10

const operationSearch = "search"

// ServiceConfig holds configuration for the place search service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger
	Metrics  *telemetry.ProviderMetrics

	// Limit is the maximum number of results per query (default: 10).
	Limit int

	// CacheTTL is how long results stay fresh (default: 10 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving stale results on provider errors (default: 1 hour).
	StaleIfErrorTTL time.Duration

	// MaxEntries bounds the cache; the oldest entry is evicted when full (default: 1000).
	MaxEntries int
}

// Service searches places with a query cache in front of the provider.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	metrics  *telemetry.ProviderMetrics
	limit    int
	cache    *cache.Cache[[]Place]
}

// NewService creates a new place search service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.StaleIfErrorTTL <= 0 {
		cfg.StaleIfErrorTTL = time.Hour
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}

	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		limit:    cfg.Limit,
		cache: cache.New[[]Place](cache.Config{
			FreshFor:   cfg.CacheTTL,
			StaleFor:   cfg.StaleIfErrorTTL,
			MaxEntries: cfg.MaxEntries,
		}),
	}
}

// Search returns places matching req.Query inside req.Bound.
// An empty slice with a nil error means the provider found nothing.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]Place, error) {
	if req.Limit <= 0 || req.Limit > s.limit {
		req.Limit = s.limit
	}
	name := s.provider.Name()
	key := cacheKey(req)

	if places, ok := s.cache.Fresh(key); ok {
		s.metrics.RecordCacheHit(ctx, name, operationSearch)
		return clonePlaces(places), nil
	}
	s.metrics.RecordCacheMiss(ctx, name, operationSearch)

	places, stale, err := s.cache.Load(ctx, key, func(ctx context.Context) ([]Place, error) {
		start := time.Now()
		found, err := s.provider.Search(ctx, req)
		s.metrics.RecordRequest(ctx, name, operationSearch, time.Since(start), err)
		if len(found) > req.Limit {
			found = found[:req.Limit]
		}
		return found, err
	})

	log := s.logger.With().Str("provider", name).Str("query", req.Query).Logger()
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("place search failed")
		return nil, err
	case stale:
		log.Warn().Msg("provider failed, serving stale place results")
	default:
		log.Debug().Int("result_count", len(places)).Msg("place search completed")
	}
	return clonePlaces(places), nil
}

// cacheKey normalizes the query so case and surrounding whitespace share an entry.
func cacheKey(req SearchRequest) string {
	q := strings.ToLower(strings.Join(strings.Fields(req.Query), " "))
	b := req.Bound
	return fmt.Sprintf("%s|%.4f,%.4f,%.4f,%.4f|%d",
		q, b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat(), req.Limit)
}

// InvalidateCache clears all cached results.
func (s *Service) InvalidateCache() {
	s.cache.Purge()
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

func clonePlaces(in []Place) []Place {
	if in == nil {
		return []Place{}
	}
	out := make([]Place, len(in))
	copy(out, in)
	return out
}

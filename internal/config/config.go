// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/placefinder/placefinder/internal/geo"
	"github.com/placefinder/placefinder/internal/routing"
)

// Config is the complete runtime configuration of the API server.
type Config struct {
	Env      string `validate:"required"`
	Port     string `validate:"required,numeric"`
	LogLevel zerolog.Level

	Telemetry TelemetryConfig
	Explorer  ExplorerConfig
	Providers ProvidersConfig

	// RateLimitPerMinute is the per-client request budget on session routes.
	RateLimitPerMinute int `validate:"gte=1"`
	// RequireTLS rejects requests a proxy forwarded over plain HTTP.
	RequireTLS bool
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64 `validate:"gte=0,lte=1"`
}

// ExplorerConfig holds session parameters.
type ExplorerConfig struct {
	OriginLat        float64 `validate:"gte=-90,lte=90"`
	OriginLon        float64 `validate:"gte=-180,lte=180"`
	RegionSpanMeters float64 `validate:"gt=0"`
	Profile          routing.Profile
	SearchLimit      int           `validate:"gte=1,lte=50"`
	SessionIdleTTL   time.Duration `validate:"gt=0"`
	MaxSessions      int           `validate:"gte=0"`
}

// Origin returns the configured route origin.
func (e ExplorerConfig) Origin() geo.Coordinate {
	return geo.Coordinate{Lat: e.OriginLat, Lon: e.OriginLon}
}

// ProvidersConfig holds upstream endpoints and credentials.
type ProvidersConfig struct {
	Timeout time.Duration `validate:"gt=0"`

	NominatimBaseURL   string `validate:"required,url"`
	NominatimUserAgent string `validate:"required"`
	NominatimEmail     string `validate:"omitempty,email"`
	NominatimBounded   bool

	ORSBaseURL string `validate:"required,url"`
	ORSAPIKey  string

	// MapillaryToken is optional; without it scene previews are disabled.
	MapillaryToken   string
	MapillaryBaseURL string `validate:"required,url"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	p := &parser{}

	cfg := &Config{
		Env:      getEnvOrDefault("APP_ENV", "development"),
		Port:     getEnvOrDefault("APP_PORT", "8080"),
		LogLevel: p.level("LOG_LEVEL", zerolog.InfoLevel),
		Telemetry: TelemetryConfig{
			Enabled:      p.bool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio:  p.float("OTEL_SAMPLE_RATIO", 1),
		},
		Explorer: ExplorerConfig{
			OriginLat:        p.float("PLACEFINDER_ORIGIN_LAT", 25.7602),
			OriginLon:        p.float("PLACEFINDER_ORIGIN_LON", -80.1959),
			RegionSpanMeters: p.float("PLACEFINDER_REGION_SPAN_METERS", 10000),
			Profile:          p.profile("PLACEFINDER_ROUTING_PROFILE", routing.ProfileDrive),
			SearchLimit:      p.int("PLACEFINDER_SEARCH_LIMIT", 10),
			SessionIdleTTL:   p.duration("PLACEFINDER_SESSION_IDLE_TTL", 30*time.Minute),
			MaxSessions:      p.int("PLACEFINDER_MAX_SESSIONS", 10000),
		},
		Providers: ProvidersConfig{
			Timeout:            p.duration("PROVIDER_TIMEOUT", 10*time.Second),
			NominatimBaseURL:   getEnvOrDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
			NominatimUserAgent: getEnvOrDefault("NOMINATIM_USER_AGENT", "placefinder/1.0"),
			NominatimEmail:     os.Getenv("NOMINATIM_EMAIL"),
			NominatimBounded:   p.bool("NOMINATIM_BOUNDED", true),
			ORSBaseURL:         getEnvOrDefault("ORS_BASE_URL", "https://api.openrouteservice.org"),
			ORSAPIKey:          os.Getenv("ORS_API_KEY"),
			MapillaryToken:     os.Getenv("MAPILLARY_ACCESS_TOKEN"),
			MapillaryBaseURL:   getEnvOrDefault("MAPILLARY_BASE_URL", "https://graph.mapillary.com"),
		},
		RateLimitPerMinute: p.int("RATE_LIMIT_PER_MINUTE", 120),
		RequireTLS:         p.bool("REQUIRE_TLS", false),
	}

	if p.err != nil {
		return nil, p.err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// parser keeps the first parse error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("parse %s=%q: %w", key, value, err)
	}
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *parser) level(key string, def zerolog.Level) zerolog.Level {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	l, err := zerolog.ParseLevel(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return l
}

func (p *parser) profile(key string, def routing.Profile) routing.Profile {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	prof, ok := routing.ParseProfile(v)
	if !ok {
		p.fail(key, v, fmt.Errorf("unknown routing profile"))
		return def
	}
	return prof
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

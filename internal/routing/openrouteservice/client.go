// Package openrouteservice provides a directions client for the
// OpenRouteService v2 GeoJSON directions API.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/placefinder/placefinder/internal/provider/resilience"
	"github.com/placefinder/placefinder/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the public OpenRouteService API.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenRouteService client.
type ClientConfig struct {
	// APIKey is the ORS API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is an OpenRouteService directions client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OpenRouteService client.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Timeout = cfg.Timeout
		if rc.Timeout == 0 {
			rc.Timeout = DefaultTimeout
		}
		rc.Registry = cfg.Registry
		rc.Logger = cfg.Logger
		c.httpClient = resilience.NewClient(rc)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// SupportedProfiles returns the profiles ORS can route.
func (c *Client) SupportedProfiles() []routing.Profile {
	return []routing.Profile{routing.ProfileDrive, routing.ProfileWalk, routing.ProfileBike}
}

// GetDirections requests routes from origin to destination. Routes come back
// best first, each with its full geometry.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	if req.Origin.Validate() != nil {
		return nil, newError("INVALID_ORIGIN", "invalid origin coordinates", routing.ErrInvalidCoordinates)
	}
	if req.Destination.Validate() != nil {
		return nil, newError("INVALID_DESTINATION", "invalid destination coordinates", routing.ErrInvalidCoordinates)
	}

	profile := req.Profile
	if profile == "" {
		profile = routing.ProfileDrive
	}

	body := directionsBody{
		Coordinates: [][2]float64{
			{req.Origin.Lon, req.Origin.Lat},
			{req.Destination.Lon, req.Destination.Lat},
		},
		Instructions: true,
		Units:        "m",
		Language:     "en",
	}
	if req.MaxAlternatives > 0 {
		body.Alternatives = &alternatives{TargetCount: req.MaxAlternatives + 1}
	}

	status, payload, err := c.post(ctx, profile, body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errorFromResponse(status, payload)
	}

	var fc routeCollection
	if err := json.Unmarshal(payload, &fc); err != nil {
		return nil, fmt.Errorf("decoding directions: %w", err)
	}

	result := &routing.DirectionsResponse{
		Routes:    toRoutes(fc.Features),
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}

	c.logger.Debug().
		Str("profile", string(profile)).
		Int("route_count", len(result.Routes)).
		Msg("received directions")

	return result, nil
}

// post sends body to the GeoJSON directions endpoint of profile and returns
// the status and the raw payload.
func (c *Client) post(ctx context.Context, profile routing.Profile, body directionsBody) (int, []byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("encoding directions request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", c.baseURL, profile)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).Msg("directions request failed")
		return 0, nil, newError("REQUEST_FAILED", "failed to reach routing provider", routing.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response body: %w", err)
	}
	return resp.StatusCode, payload, nil
}

func newError(code, message string, err error) *routing.Error {
	return &routing.Error{Provider: ProviderName, Code: code, Message: message, Err: err}
}

// errorFromResponse maps a non-200 answer to a routing error. ORS reports
// unroutable inputs as 400 or 404 with codes 2009 and 2010.
func errorFromResponse(status int, payload []byte) error {
	var envelope apiError
	if json.Unmarshal(payload, &envelope) != nil {
		return newError(fmt.Sprintf("HTTP_%d", status),
			fmt.Sprintf("routing provider returned status %d", status), routing.ErrProviderUnavailable)
	}
	msg := envelope.Error.Message

	switch {
	case envelope.Error.Code == codeRouteNotFound || envelope.Error.Code == codePointNotRoutable:
		return newError("NO_ROUTE", msg, routing.ErrNoRouteFound)
	case status == http.StatusNotFound:
		return newError("NO_ROUTE", "no route found between the given points", routing.ErrNoRouteFound)
	case status == http.StatusTooManyRequests:
		return newError("RATE_LIMIT", "API rate limit exceeded, please try again later", routing.ErrRateLimitExceeded)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError("FORBIDDEN", "API access denied, check the ORS API key", routing.ErrProviderUnavailable)
	case status == http.StatusBadRequest:
		return newError("BAD_REQUEST", msg, routing.ErrInvalidCoordinates)
	case status >= 500:
		return newError(fmt.Sprintf("SERVER_%d", status), "routing provider is temporarily unavailable", routing.ErrProviderUnavailable)
	default:
		return newError(fmt.Sprintf("HTTP_%d", status), msg, routing.ErrProviderUnavailable)
	}
}

// toRoutes converts route features to domain routes. Features without a
// LineString geometry are skipped.
func toRoutes(features []routeFeature) []routing.Route {
	routes := make([]routing.Route, 0, len(features))
	for i := range features {
		f := &features[i]
		if f.Geometry == nil {
			continue
		}
		line, ok := f.Geometry.Geometry().(orb.LineString)
		if !ok {
			continue
		}

		route := routing.Route{
			Geometry:        line,
			DistanceMeters:  int(f.Properties.Summary.Distance),
			DurationSeconds: int(f.Properties.Summary.Duration),
			Summary:         mainStreet(f.Properties.Segments),
		}
		for _, seg := range f.Properties.Segments {
			for _, s := range seg.Steps {
				route.Instructions = append(route.Instructions, routing.Instruction{
					Text:           s.Instruction,
					DistanceMeters: int(s.Distance),
					DurationSecs:   int(s.Duration),
					Type:           s.Type,
				})
			}
		}
		routes = append(routes, route)
	}
	return routes
}

// mainStreet names the street the route spends the longest distance on.
// ORS uses "-" for unnamed ways.
func mainStreet(segments []segment) string {
	meters := make(map[string]float64)
	var best string
	for _, seg := range segments {
		for _, s := range seg.Steps {
			if s.Name == "" || s.Name == "-" {
				continue
			}
			meters[s.Name] += s.Distance
			if meters[s.Name] > meters[best] {
				best = s.Name
			}
		}
	}
	return best
}

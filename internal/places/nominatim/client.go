// Package nominatim provides a place search client for the OpenStreetMap Nominatim API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/placefinder/placefinder/internal/geo"
	"github.com/placefinder/placefinder/internal/places"
	"github.com/placefinder/placefinder/internal/provider/resilience"
)

const (
	// ProviderName identifies this place provider.
	ProviderName = "nominatim"

	// DefaultBaseURL is the public Nominatim endpoint.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 5 * time.Second

	// DefaultUserAgent identifies the application as Nominatim's usage policy requires.
	DefaultUserAgent = "placefinder/1.0"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to the public instance).
	BaseURL string

	// UserAgent is sent with every request (optional).
	UserAgent string

	// Email is passed as the contact parameter for heavy users (optional).
	Email string

	// Bounded restricts results to the request bound instead of only preferring it.
	Bounded bool

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 5s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is a Nominatim search client.
type Client struct {
	baseURL    string
	userAgent  string
	email      string
	bounded    bool
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Nominatim client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		email:      cfg.Email,
		bounded:    cfg.Bounded,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Search looks up places matching the query. Hits without a usable
// coordinate are dropped.
func (c *Client) Search(ctx context.Context, req places.SearchRequest) ([]places.Place, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "0")
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}
	if !req.Bound.IsZero() {
		params.Set("viewbox", viewbox(req))
		if c.bounded {
			params.Set("bounded", "1")
		}
	}
	if c.email != "" {
		params.Set("email", c.email)
	}

	reqURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("query", req.Query).
		Int("limit", req.Limit).
		Msg("searching places on nominatim")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &places.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach place search provider",
			Err:      places.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode)
	}

	var raw []searchResult
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]places.Place, 0, len(raw))
	for _, r := range raw {
		p, ok := buildPlace(r)
		if !ok {
			continue
		}
		results = append(results, p)
	}

	c.logger.Debug().
		Int("raw_count", len(raw)).
		Int("result_count", len(results)).
		Msg("received places from nominatim")

	return results, nil
}

func handleErrorResponse(statusCode int) error {
	switch {
	case statusCode == http.StatusTooManyRequests || statusCode == http.StatusForbidden:
		// Nominatim answers 403 when a client is blocked for exceeding the usage policy
		return &places.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "place search quota exceeded",
			Err:      places.ErrRateLimitExceeded,
		}
	case statusCode == http.StatusBadRequest:
		return &places.Error{
			Provider: ProviderName,
			Code:     "BAD_REQUEST",
			Message:  "place search provider rejected the query",
			Err:      places.ErrInvalidRequest,
		}
	case statusCode >= 500:
		return &places.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "place search provider is temporarily unavailable",
			Err:      places.ErrProviderUnavailable,
		}
	default:
		return &places.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("place search provider returned status %d", statusCode),
			Err:      places.ErrProviderUnavailable,
		}
	}
}

// viewbox formats the bound as left,top,right,bottom.
func viewbox(req places.SearchRequest) string {
	b := req.Bound
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	return strings.Join([]string{f(b.Min.Lon()), f(b.Max.Lat()), f(b.Max.Lon()), f(b.Min.Lat())}, ",")
}

func buildPlace(r searchResult) (places.Place, bool) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return places.Place{}, false
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return places.Place{}, false
	}

	coord := geo.Coordinate{Lat: lat, Lon: lon}
	if !coord.Usable() {
		return places.Place{}, false
	}

	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = firstPart(r.DisplayName)
	}

	return places.Place{
		ID:         placeID(r),
		Name:       name,
		Title:      r.DisplayName,
		Coordinate: coord,
		Category:   categoryOf(r),
	}, true
}

// placeID prefers the OSM object reference, which is stable across Nominatim instances.
func placeID(r searchResult) string {
	if r.OSMType != "" && r.OSMID != 0 {
		return fmt.Sprintf("%s:%s%d", ProviderName, strings.ToUpper(r.OSMType[:1]), r.OSMID)
	}
	return fmt.Sprintf("%s:%d", ProviderName, r.PlaceID)
}

func categoryOf(r searchResult) string {
	switch {
	case r.Category != "" && r.Type != "":
		return r.Category + "/" + r.Type
	default:
		return r.Category
	}
}

func firstPart(displayName string) string {
	name, _, _ := strings.Cut(displayName, ",")
	return strings.TrimSpace(name)
}

// Package mapillary provides a scene preview client for the Mapillary Graph API.
package mapillary

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

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/rs/zerolog"

	"github.com/placefinder/placefinder/internal/geo"
	"github.com/placefinder/placefinder/internal/preview"
	"github.com/placefinder/placefinder/internal/provider/resilience"
)

const (
	// ProviderName identifies this scene provider.
	ProviderName = "mapillary"

	// DefaultBaseURL is the Mapillary Graph API base URL.
	DefaultBaseURL = "https://graph.mapillary.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 5 * time.Second

	// DefaultSearchRadius is the half-width of the box searched around a place, in meters.
	DefaultSearchRadius = 50.0

	viewerURL   = "https://www.mapillary.com/app/?pKey="
	imageFields = "id,thumb_1024_url,captured_at,compass_angle,computed_geometry,geometry"
	imageLimit  = 20
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Mapillary client.
type ClientConfig struct {
	// AccessToken is the Mapillary client token (required).
	AccessToken string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// SearchRadius is the half-width of the search box in meters (default: 50).
	SearchRadius float64

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 5s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is a Mapillary Graph API client.
type Client struct {
	accessToken  string
	baseURL      string
	searchRadius float64
	httpClient   HTTPDoer
	logger       zerolog.Logger
}

// NewClient creates a new Mapillary client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	radius := cfg.SearchRadius
	if radius <= 0 {
		radius = DefaultSearchRadius
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
		accessToken:  cfg.AccessToken,
		baseURL:      baseURL,
		searchRadius: radius,
		httpClient:   httpClient,
		logger:       cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Scene returns the image captured closest to the coordinate.
func (c *Client) Scene(ctx context.Context, at geo.Coordinate) (*preview.Scene, error) {
	if err := at.Validate(); err != nil {
		return nil, &preview.Error{
			Provider: ProviderName,
			Code:     "INVALID_COORDINATE",
			Message:  "invalid scene coordinate",
			Err:      err,
		}
	}

	bound := geo.NewRegion(at, 2*c.searchRadius, 2*c.searchRadius).Bound()

	params := url.Values{}
	params.Set("access_token", c.accessToken)
	params.Set("fields", imageFields)
	params.Set("bbox", bbox(bound))
	params.Set("limit", strconv.Itoa(imageLimit))

	reqURL := fmt.Sprintf("%s/images?%s", c.baseURL, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Float64("lat", at.Lat).
		Float64("lon", at.Lon).
		Msg("looking up scene on mapillary")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &preview.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach scene provider",
			Err:      preview.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &preview.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  fmt.Sprintf("scene provider returned status %d", resp.StatusCode),
			Err:      preview.ErrProviderUnavailable,
		}
	}

	var images imagesResponse
	if err := json.Unmarshal(body, &images); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	best, ok := nearest(images.Data, at.Point())
	if !ok {
		return nil, &preview.Error{
			Provider: ProviderName,
			Code:     "NO_SCENE",
			Message:  "no imagery near coordinate",
			Err:      preview.ErrNoScene,
		}
	}

	return best, nil
}

// nearest picks the image closest to target, skipping images without a
// thumbnail or a point location.
func nearest(images []image, target orb.Point) (*preview.Scene, bool) {
	var (
		best     *preview.Scene
		bestDist float64
	)
	for i := range images {
		img := &images[i]
		p, ok := img.location()
		if !ok || img.ThumbURL == "" {
			continue
		}
		d := orbgeo.Distance(target, p)
		if best != nil && d >= bestDist {
			continue
		}
		bestDist = d
		best = &preview.Scene{
			ID:         img.ID,
			ImageURL:   img.ThumbURL,
			ViewerURL:  viewerURL + url.QueryEscape(img.ID),
			CapturedAt: time.UnixMilli(img.CapturedAt).UTC(),
			Coordinate: geo.FromPoint(p),
			Heading:    img.CompassAngle,
			Provider:   ProviderName,
		}
	}
	return best, best != nil
}

// bbox formats the bound as minLon,minLat,maxLon,maxLat.
func bbox(b orb.Bound) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	return strings.Join([]string{f(b.Min.Lon()), f(b.Min.Lat()), f(b.Max.Lon()), f(b.Max.Lat())}, ",")
}

package openrouteservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placefinder/placefinder/internal/geo"
	"github.com/placefinder/placefinder/internal/routing"
)

const directionsGeoJSON = `{
  "type": "FeatureCollection",
  "bbox": [-80.1959, 25.7602, -80.19, 25.77],
  "features": [
    {
      "type": "Feature",
      "bbox": [-80.1959, 25.7602, -80.19, 25.77],
      "properties": {
        "summary": {"distance": 12345.6, "duration": 2456.2},
        "segments": [
          {
            "distance": 12345.6,
            "duration": 2456.2,
            "steps": [
              {"distance": 120.0, "duration": 30.0, "type": 11, "instruction": "Head north on Brickell Ave", "name": "Brickell Ave"},
              {"distance": 900.0, "duration": 200.0, "type": 1, "instruction": "Turn right onto Biscayne Blvd", "name": "Biscayne Blvd"},
              {"distance": 700.0, "duration": 150.0, "type": 0, "instruction": "Turn left onto Brickell Ave", "name": "Brickell Ave"},
              {"distance": 0.0, "duration": 0.0, "type": 10, "instruction": "Arrive at destination", "name": "-"}
            ]
          }
        ],
        "way_points": [0, 2]
      },
      "geometry": {
        "type": "LineString",
        "coordinates": [[-80.1959, 25.7602], [-80.1930, 25.7650], [-80.19, 25.77]]
      }
    },
    {
      "type": "Feature",
      "properties": {"summary": {"distance": 14000.0, "duration": 2700.0}, "segments": []},
      "geometry": {"type": "LineString", "coordinates": [[-80.1959, 25.7602], [-80.19, 25.77]]}
    },
    {
      "type": "Feature",
      "properties": {"summary": {"distance": 1.0, "duration": 1.0}},
      "geometry": {"type": "Point", "coordinates": [-80.19, 25.77]}
    }
  ]
}`

var (
	testOrigin      = geo.Coordinate{Lat: 25.7602, Lon: -80.1959}
	testDestination = geo.Coordinate{Lat: 25.7700, Lon: -80.1900}
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(ClientConfig{
		APIKey:     "mock123",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
	})
}

func TestClient_GetDirections_Success(t *testing.T) {
	var gotBody directionsBody
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "mock123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/geo+json", r.Header.Get("Accept"))
		assert.Equal(t, "/v2/directions/foot-walking/geojson", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(directionsGeoJSON))
	})

	resp, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
		Origin:          testOrigin,
		Destination:     testDestination,
		Profile:         routing.ProfileWalk,
		MaxAlternatives: 1,
	})
	require.NoError(t, err)

	// lon, lat order on the wire
	require.Len(t, gotBody.Coordinates, 2)
	assert.Equal(t, [2]float64{-80.1959, 25.7602}, gotBody.Coordinates[0])
	assert.Equal(t, [2]float64{-80.19, 25.77}, gotBody.Coordinates[1])
	require.NotNil(t, gotBody.Alternatives)
	assert.Equal(t, 2, gotBody.Alternatives.TargetCount)
	assert.True(t, gotBody.Instructions)

	assert.Equal(t, ProviderName, resp.Provider)
	// the Point feature is not a route
	require.Len(t, resp.Routes, 2)

	route := resp.Routes[0]
	assert.Equal(t, 12345, route.DistanceMeters)
	assert.Equal(t, 2456, route.DurationSeconds)
	require.Len(t, route.Geometry, 3)
	assert.Equal(t, orb.Point{-80.1959, 25.7602}, route.Geometry[0])
	assert.Equal(t, orb.Point{-80.19, 25.77}, route.Geometry[2])
	require.Len(t, route.Instructions, 4)
	assert.Equal(t, "Turn right onto Biscayne Blvd", route.Instructions[1].Text)
	assert.Equal(t, 900, route.Instructions[1].DistanceMeters)
	// Brickell Ave wins on total distance over two steps
	assert.Equal(t, "Brickell Ave", route.Summary)

	assert.Len(t, resp.Routes[1].Geometry, 2)
	assert.Empty(t, resp.Routes[1].Instructions)
	assert.Empty(t, resp.Routes[1].Summary)
}

func TestClient_GetDirections_DefaultsAndNoAlternatives(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/directions/driving-car/geojson", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	})

	resp, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
		Origin:      testOrigin,
		Destination: testDestination,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Routes)

	_, hasAlternatives := gotBody["alternative_routes"]
	assert.False(t, hasAlternatives)
}

func TestClient_GetDirections_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		code    string
	}{
		{
			name:    "route not found",
			status:  http.StatusBadRequest,
			body:    `{"error":{"code":2009,"message":"Route could not be found"}}`,
			wantErr: routing.ErrNoRouteFound,
			code:    "NO_ROUTE",
		},
		{
			name:    "point not routable",
			status:  http.StatusNotFound,
			body:    `{"error":{"code":2010,"message":"Could not find routable point"}}`,
			wantErr: routing.ErrNoRouteFound,
			code:    "NO_ROUTE",
		},
		{
			name:    "bad parameter",
			status:  http.StatusBadRequest,
			body:    `{"error":{"code":2003,"message":"Parameter is invalid"}}`,
			wantErr: routing.ErrInvalidCoordinates,
			code:    "BAD_REQUEST",
		},
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			body:    `{"error":{"code":403,"message":"Rate limit exceeded"}}`,
			wantErr: routing.ErrRateLimitExceeded,
			code:    "RATE_LIMIT",
		},
		{
			name:    "missing key",
			status:  http.StatusUnauthorized,
			body:    `{"error":"Authorization field missing"}`,
			wantErr: routing.ErrProviderUnavailable,
			code:    "HTTP_401",
		},
		{
			name:    "forbidden",
			status:  http.StatusForbidden,
			body:    `{"error":{"code":403,"message":"Access denied"}}`,
			wantErr: routing.ErrProviderUnavailable,
			code:    "FORBIDDEN",
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `{"error":{"code":500,"message":"Internal server error"}}`,
			wantErr: routing.ErrProviderUnavailable,
			code:    "SERVER_500",
		},
		{
			name:    "unparseable body",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			wantErr: routing.ErrProviderUnavailable,
			code:    "HTTP_502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
				Origin:      testOrigin,
				Destination: testDestination,
			})
			require.Error(t, err)

			var routingErr *routing.Error
			require.True(t, errors.As(err, &routingErr))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.code, routingErr.Code)
			assert.Equal(t, ProviderName, routingErr.Provider)
		})
	}
}

func TestClient_GetDirections_InvalidCoordinates(t *testing.T) {
	tests := []struct {
		name        string
		origin      geo.Coordinate
		destination geo.Coordinate
		code        string
	}{
		{"latitude out of range", geo.Coordinate{Lat: 91.0, Lon: 4.9}, testDestination, "INVALID_ORIGIN"},
		{"negative latitude out of range", geo.Coordinate{Lat: -91.0, Lon: 4.9}, testDestination, "INVALID_ORIGIN"},
		{"longitude out of range", testOrigin, geo.Coordinate{Lat: 52.0, Lon: 181.0}, "INVALID_DESTINATION"},
		{"negative longitude out of range", testOrigin, geo.Coordinate{Lat: 52.0, Lon: -181.0}, "INVALID_DESTINATION"},
	}

	client := NewClient(ClientConfig{
		APIKey:     "mock123",
		HTTPClient: &failingDoer{},
		Logger:     zerolog.Nop(),
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
				Origin:      tt.origin,
				Destination: tt.destination,
			})
			require.Error(t, err)

			var routingErr *routing.Error
			require.True(t, errors.As(err, &routingErr))
			assert.ErrorIs(t, err, routing.ErrInvalidCoordinates)
			assert.Equal(t, tt.code, routingErr.Code)
		})
	}
}

// failingDoer simulates network errors.
type failingDoer struct{}

func (m *failingDoer) Do(req *http.Request) (*http.Response, error) {
	return nil, errors.New("network error")
}

func TestClient_GetDirections_NetworkError(t *testing.T) {
	client := NewClient(ClientConfig{
		APIKey:     "mock123",
		HTTPClient: &failingDoer{},
		Logger:     zerolog.Nop(),
	})

	_, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
		Origin:      testOrigin,
		Destination: testDestination,
	})
	require.Error(t, err)

	var routingErr *routing.Error
	require.True(t, errors.As(err, &routingErr))
	assert.ErrorIs(t, err, routing.ErrProviderUnavailable)
	assert.True(t, routingErr.IsRetryable())
}

func TestClient_NameAndProfiles(t *testing.T) {
	client := NewClient(ClientConfig{APIKey: "test", Logger: zerolog.Nop()})

	assert.Equal(t, ProviderName, client.Name())
	assert.ElementsMatch(t, []routing.Profile{
		routing.ProfileDrive,
		routing.ProfileWalk,
		routing.ProfileBike,
	}, client.SupportedProfiles())
}

func TestMainStreet(t *testing.T) {
	segments := []segment{
		{Steps: []step{
			{Name: "A St", Distance: 400},
			{Name: "-", Distance: 5000},
			{Name: "B Ave", Distance: 500},
		}},
		{Steps: []step{{Name: "A St", Distance: 300}}},
	}
	assert.Equal(t, "A St", mainStreet(segments))
	assert.Empty(t, mainStreet(nil))
	assert.Empty(t, mainStreet([]segment{{Steps: []step{{Name: "-", Distance: 10}}}}))
}

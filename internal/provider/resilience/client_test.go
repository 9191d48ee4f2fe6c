package resilience_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placefinder/placefinder/internal/provider/resilience"
)

// quickConfig retries fast and keeps the breaker closed for the first
// hundred calls.
func quickConfig(name string, retries uint64) resilience.ClientConfig {
	return resilience.ClientConfig{
		Name:            name,
		Timeout:         2 * time.Second,
		MaxRetries:      retries,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		Breaker: resilience.BreakerConfig{
			MinRequests:    100,
			FailureRatio:   1,
			OpenTimeout:    time.Minute,
			HalfOpenRequests: 1,
		},
		Logger: zerolog.Nop(),
	}
}

// statusSequence answers with codes in order and repeats the last one.
func statusSequence(codes ...int) (*httptest.Server, *atomic.Int32) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(calls.Add(1))
		if n > len(codes) {
			n = len(codes)
		}
		w.WriteHeader(codes[n-1])
	}))
	return srv, &calls
}

func get(t *testing.T, ctx context.Context, c *resilience.Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	resp, err := c.Do(req)
	if resp != nil {
		t.Cleanup(func() { resp.Body.Close() })
	}
	return resp, err
}

func TestClient_Do(t *testing.T) {
	tests := []struct {
		name       string
		codes      []int
		retries    uint64
		wantStatus int
		wantCalls  int32
		wantFailed bool
	}{
		{"ok first time", []int{200}, 3, 200, 1, false},
		{"recovers after 5xx", []int{503, 502, 200}, 3, 200, 3, false},
		{"4xx is not retried", []int{400}, 3, 400, 1, false},
		{"429 is not retried", []int{429}, 3, 429, 1, false},
		{"exhausted 5xx returns last answer", []int{500, 500, 504}, 2, 504, 3, true},
		{"no retries configured", []int{503, 200}, 0, 503, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := statusSequence(tt.codes...)
			defer srv.Close()

			registry := resilience.NewRegistry()
			cfg := quickConfig("nominatim", tt.retries)
			cfg.Registry = registry
			client := resilience.NewClient(cfg)

			resp, err := get(t, context.Background(), client, srv.URL)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, calls.Load())

			health := registry.GetHealth("nominatim")
			require.NotNil(t, health)
			if tt.wantFailed {
				require.NotNil(t, health.LastFailureAt)
				assert.Contains(t, health.LastError, http.StatusText(tt.wantStatus))
				assert.Nil(t, health.LastSuccessAt)
			} else {
				assert.NotNil(t, health.LastSuccessAt)
				assert.Nil(t, health.LastFailureAt)
			}
		})
	}
}

func TestClient_RetryResendsBody(t *testing.T) {
	var calls atomic.Int32
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := resilience.NewClient(quickConfig("openrouteservice", 2))

	payload := `{"coordinates":[[-80.1959,25.7602],[-80.13,25.79]]}`
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL, bytes.NewReader([]byte(payload)))
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, []string{payload, payload}, bodies)
}

func TestClient_OpenCircuitShortCircuits(t *testing.T) {
	srv, calls := statusSequence(http.StatusInternalServerError)
	defer srv.Close()

	registry := resilience.NewRegistry()
	cfg := quickConfig("mapillary", 0)
	cfg.Breaker.MinRequests = 3
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	for range 3 {
		_, _ = get(t, context.Background(), client, srv.URL)
	}
	require.Equal(t, gobreaker.StateOpen, client.CircuitState())

	resp, err := get(t, context.Background(), client, srv.URL)
	assert.Nil(t, resp)
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load(), "open circuit must not reach the provider")

	health := registry.GetHealth("mapillary")
	require.NotNil(t, health)
	assert.True(t, health.IsUnhealthy())
	assert.NotNil(t, health.StateChangedAt)
	assert.Equal(t, resilience.ErrCircuitOpen.Error(), health.LastError)
}

func TestClient_AttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := quickConfig("nominatim", 0)
	cfg.Timeout = 50 * time.Millisecond
	client := resilience.NewClient(cfg)

	_, err := get(t, context.Background(), client, srv.URL)
	assert.Error(t, err)
	assert.Equal(t, uint32(1), client.CircuitCounts().TotalFailures)
}

func TestClient_CancelledCallerDoesNotCountAgainstProvider(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	registry := resilience.NewRegistry()
	cfg := quickConfig("openrouteservice", 3)
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := get(t, ctx, client, srv.URL)
	require.ErrorIs(t, err, context.Canceled)

	assert.Zero(t, client.CircuitCounts().TotalFailures)
	health := registry.GetHealth("openrouteservice")
	require.NotNil(t, health)
	assert.Nil(t, health.LastFailureAt)
}

func TestNewClient_FillsDefaults(t *testing.T) {
	client := resilience.NewClient(resilience.ClientConfig{Name: "nominatim"})

	assert.Equal(t, "nominatim", client.Name())
	assert.Equal(t, gobreaker.StateClosed, client.CircuitState())
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := resilience.DefaultClientConfig("openrouteservice")

	assert.Equal(t, "openrouteservice", cfg.Name)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, uint64(2), cfg.MaxRetries)
	assert.Equal(t, resilience.DefaultBreakerConfig(), cfg.Breaker)
}

func TestBreakerConfig_ShouldTrip(t *testing.T) {
	cfg := resilience.DefaultBreakerConfig()

	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{"no calls", gobreaker.Counts{}, false},
		{"too few calls", gobreaker.Counts{Requests: 4, TotalFailures: 4}, false},
		{"under ratio", gobreaker.Counts{Requests: 10, TotalFailures: 4}, false},
		{"at ratio", gobreaker.Counts{Requests: 10, TotalFailures: 5}, true},
		{"all failing", gobreaker.Counts{Requests: 5, TotalFailures: 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.ShouldTrip(tt.counts))
		})
	}
}

func TestServerError(t *testing.T) {
	err := &resilience.ServerError{StatusCode: http.StatusServiceUnavailable}
	assert.Equal(t, "provider answered 503 Service Unavailable", err.Error())
}

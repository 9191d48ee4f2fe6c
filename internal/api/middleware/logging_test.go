package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placefinder/placefinder/internal/api/middleware"
)

// logLine serves req through h and decodes the single log line written to buf.
func logLine(t *testing.T, buf *bytes.Buffer, h http.Handler, req *http.Request) map[string]any {
	t.Helper()
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output: %s", buf.String())
	return entry
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	h := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/search", http.NoBody)
	req.Header.Set("User-Agent", "placefinder-ios/2.1")
	entry := logLine(t, &buf, h, req)

	assert.Equal(t, "request completed", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "/search", entry["path"])
	assert.Equal(t, "/search", entry["route"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(len(`{"candidates":[]}`)), entry["bytes"])
	assert.Equal(t, "placefinder-ios/2.1", entry["user_agent"])
	assert.Contains(t, entry, "duration")
	assert.NotContains(t, entry, "session_id")
	assert.NotContains(t, entry, "trace_id")
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		want   string
	}{
		{"server error", "/v1/sessions/", http.StatusServiceUnavailable, "error"},
		{"client error", "/v1/sessions/x", http.StatusNotFound, "warn"},
		{"ops check", "/v1/ops/health", http.StatusOK, "debug"},
		{"failing check", "/v1/ops/ready", http.StatusServiceUnavailable, "error"},
		{"session traffic", "/v1/sessions/", http.StatusCreated, "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			entry := logLine(t, &buf, h, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))
			assert.Equal(t, tt.want, entry["level"])
		})
	}
}

func TestLogger_SessionRoute(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(middleware.Logger(zerolog.New(&buf)))
	r.Put("/v1/sessions/{sessionId}/selection", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	entry := logLine(t, &buf, r, httptest.NewRequest(http.MethodPut, "/v1/sessions/7f3c/selection", http.NoBody))

	assert.Equal(t, "7f3c", entry["session_id"])
	assert.Equal(t, "/v1/sessions/{sessionId}/selection", entry["route"])
	assert.Equal(t, "/v1/sessions/7f3c/selection", entry["path"])
}

func TestLogger_Correlation(t *testing.T) {
	setupTestTracer(t)

	var buf bytes.Buffer
	h := middleware.RequestID(middleware.Tracing("placefinder-test")(
		middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})),
	))

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/abc", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "edge-77")
	entry := logLine(t, &buf, h, req)

	assert.Equal(t, "edge-77", entry["request_id"])
	assert.Len(t, entry["trace_id"], 32)
	assert.Len(t, entry["span_id"], 16)
}

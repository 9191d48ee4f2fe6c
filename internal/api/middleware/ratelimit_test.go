package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/placefinder/placefinder/internal/api/middleware"
)

// hit sends one request from remoteAddr and returns the recorder.
func hit(h http.Handler, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP_Budget(t *testing.T) {
	h := middleware.RateLimitByIP(middleware.PerMinute(3))(http.HandlerFunc(okHandler))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(h, "/v1/sessions/", "10.0.0.1:1000").Code, "request %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "/v1/sessions/", "10.0.0.1:1000").Code)

	// another port on the same host shares the budget
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "/v1/sessions/", "10.0.0.1:2000").Code)
	// another host does not
	assert.Equal(t, http.StatusOK, hit(h, "/v1/sessions/", "10.0.0.2:1000").Code)
}

func TestRateLimitBySession_SeparateBudgetPerSession(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/v1/sessions/{sessionId}", func(r chi.Router) {
		r.Use(middleware.RateLimitBySession(middleware.PerMinute(2)))
		r.Get("/map", okHandler)
	})

	const client = "198.51.100.7:4000"
	assert.Equal(t, http.StatusOK, hit(r, "/v1/sessions/s1/map", client).Code)
	assert.Equal(t, http.StatusOK, hit(r, "/v1/sessions/s1/map", client).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "/v1/sessions/s1/map", client).Code)

	assert.Equal(t, http.StatusOK, hit(r, "/v1/sessions/s2/map", client).Code)
	// a second client guessing the same session id has its own budget
	assert.Equal(t, http.StatusOK, hit(r, "/v1/sessions/s1/map", "198.51.100.8:4000").Code)
}

func TestRateLimit_ProblemResponse(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 1, WindowLength: 30 * time.Second}
	h := middleware.RequestID(middleware.RateLimitByIP(cfg)(http.HandlerFunc(okHandler)))

	assert.Equal(t, http.StatusOK, hit(h, "/v1/sessions/", "203.0.113.1:5000").Code)
	rec := hit(h, "/v1/sessions/", "203.0.113.1:5000")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	body := rec.Body.String()
	assert.Contains(t, body, "too-many-requests")
	assert.Contains(t, body, "Rate limit exceeded")
	assert.Contains(t, body, `"instance":"/v1/sessions/"`)
	assert.Contains(t, body, rec.Header().Get(middleware.RequestIDHeader))
}

func TestPerMinute(t *testing.T) {
	assert.Equal(t, middleware.RateLimitConfig{RequestLimit: 120, WindowLength: time.Minute}, middleware.PerMinute(120))
	assert.Equal(t, 10, middleware.SessionCreateRateLimit.RequestLimit)
}

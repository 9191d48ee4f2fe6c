package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/placefinder/placefinder/internal/api/models"
)

// RateLimitConfig is a request budget per window.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// PerMinute returns a budget of n requests per minute.
func PerMinute(n int) RateLimitConfig {
	return RateLimitConfig{RequestLimit: n, WindowLength: time.Minute}
}

// SessionCreateRateLimit bounds session creation per client (10 req/min).
var SessionCreateRateLimit = PerMinute(10)

// RateLimitByIP limits by client IP. Behind a proxy, run chi's RealIP first.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(limitExceeded(cfg)),
	)
}

// RateLimitBySession limits per session and client IP. It must be mounted
// inside the {sessionId} route so the parameter is resolved.
func RateLimitBySession(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyBySessionAndIP),
		httprate.WithLimitHandler(limitExceeded(cfg)),
	)
}

func keyBySessionAndIP(r *http.Request) (string, error) {
	ip, err := httprate.KeyByRealIP(r)
	if err != nil {
		return "", err
	}
	if id := sessionID(r); id != "" {
		return "session:" + id + ":" + ip, nil
	}
	return ip, nil
}

// limitExceeded writes a 429 problem. httprate does not expose the window
// reset, so Retry-After is the full window.
func limitExceeded(cfg RateLimitConfig) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(cfg.WindowLength.Seconds()))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", retryAfter)
		models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.").
			WithInstance(r.URL.Path).
			Write(w)
	}
}

// Package resilience wraps outbound provider calls (place search, directions,
// scene imagery) with circuit breakers, timeouts and retries, and keeps a
// registry of provider health for the ops endpoints.
package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig controls when a provider's circuit opens.
type BreakerConfig struct {
	// MinRequests is how many calls must be counted before the ratio applies.
	MinRequests uint32
	// FailureRatio opens the circuit once this share of counted calls failed.
	FailureRatio float64
	// OpenTimeout is how long the circuit stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of trial calls allowed while half-open.
	HalfOpenRequests uint32
	// Interval clears the counts periodically while closed; 0 never clears.
	Interval time.Duration
}

// DefaultBreakerConfig opens after half of at least 5 calls failed and tries
// again after 30 seconds. Public geocoders recover quickly, so the window is
// short.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MinRequests:    5,
		FailureRatio:   0.5,
		OpenTimeout:    30 * time.Second,
		HalfOpenRequests: 1,
		Interval:       2 * time.Minute,
	}
}

// ShouldTrip reports whether counts warrant opening the circuit.
func (c BreakerConfig) ShouldTrip(counts gobreaker.Counts) bool {
	if counts.Requests < c.MinRequests || counts.Requests == 0 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

func newBreaker(name string, cfg BreakerConfig, onChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:          name,
		MaxRequests:   cfg.HalfOpenRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.OpenTimeout,
		ReadyToTrip:   cfg.ShouldTrip,
		OnStateChange: onChange,
		IsSuccessful:  countsAsSuccess,
	})
}

// countsAsSuccess keeps callers that went away from tripping the circuit: a
// cancelled request says nothing about the provider.
func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

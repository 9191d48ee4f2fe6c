// Package places resolves free-text queries into nearby places through an
// external geocoding provider.
package places

import (
	"context"
	"errors"

	"github.com/paulmach/orb"

	"github.com/placefinder/placefinder/internal/geo"
)

// Sentinel errors for place search.
var (
	// ErrProviderUnavailable indicates the geocoder is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("place search provider unavailable")
	// ErrRateLimitExceeded indicates the provider refused the request due to quota.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidRequest indicates the provider rejected the query.
	ErrInvalidRequest = errors.New("invalid search request")
)

// Provider defines the interface for place search providers.
type Provider interface {
	// Search returns places matching the query, biased to the request bound.
	// Every returned place has a usable coordinate.
	Search(ctx context.Context, req SearchRequest) ([]Place, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// SearchRequest is a free-text lookup biased to a region.
type SearchRequest struct {
	Query string
	Bound orb.Bound
	Limit int
}

// Place is a single search hit.
type Place struct {
	// ID is the provider's stable identifier, prefixed with the provider name.
	ID         string
	Name       string
	Title      string
	Coordinate geo.Coordinate
	Category   string
}

// Error provides detailed error information from the place provider.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

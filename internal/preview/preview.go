// Package preview finds street-level imagery near a coordinate so a selected
// place can be shown before the user commits to a route.
package preview

import (
	"context"
	"errors"
	"time"

	"github.com/placefinder/placefinder/internal/geo"
)

// Sentinel errors for scene lookup.
var (
	// ErrNoScene indicates no imagery exists near the coordinate.
	ErrNoScene = errors.New("no scene available")
	// ErrProviderUnavailable indicates the imagery provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("scene provider unavailable")
)

// Provider looks up a scene near a coordinate.
type Provider interface {
	Scene(ctx context.Context, at geo.Coordinate) (*Scene, error)
	Name() string
}

// Scene is a single street-level image.
type Scene struct {
	ID         string
	ImageURL   string
	ViewerURL  string
	CapturedAt time.Time
	Coordinate geo.Coordinate
	// Heading is the compass angle of the camera in degrees.
	Heading  float64
	Provider string
}

// Error provides detailed error information from the scene provider.
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

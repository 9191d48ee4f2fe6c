// Package routing computes driving, walking and cycling paths between two
// coordinates through an external directions provider.
package routing

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/paulmach/orb"

	"github.com/placefinder/placefinder/internal/geo"
	"github.com/placefinder/placefinder/pkg/polyline"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrUnsupportedProfile indicates the provider cannot route the requested mode of transport.
	ErrUnsupportedProfile = errors.New("unsupported routing profile")
)

// Provider defines the interface for directions providers.
type Provider interface {
	// GetDirections retrieves routes between two points, best first.
	GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
	// SupportedProfiles returns the profiles this provider can route.
	SupportedProfiles() []Profile
}

// Profile is a mode of transport understood by the provider.
type Profile string

const (
	// ProfileDrive is the default; it matches what a map app offers for "Get Directions".
	ProfileDrive Profile = "driving-car"
	ProfileWalk  Profile = "foot-walking"
	ProfileBike  Profile = "cycling-regular"
)

// ParseProfile maps a user-facing mode name to a Profile.
func ParseProfile(s string) (Profile, bool) {
	switch s {
	case "", "drive", "driving", string(ProfileDrive):
		return ProfileDrive, true
	case "walk", "walking", string(ProfileWalk):
		return ProfileWalk, true
	case "bike", "cycling", string(ProfileBike):
		return ProfileBike, true
	default:
		return "", false
	}
}

// DirectionsRequest is the request for computing routes.
type DirectionsRequest struct {
	Origin          geo.Coordinate
	Destination     geo.Coordinate
	Profile         Profile
	MaxAlternatives int // alternatives beyond the primary route; 0 asks for the primary only
}

// DirectionsResponse is the response containing route alternatives.
type DirectionsResponse struct {
	Routes    []Route
	Provider  string
	FetchedAt time.Time
}

// Route is one route option.
type Route struct {
	Geometry        orb.LineString
	DistanceMeters  int
	DurationSeconds int
	Summary         string
	Instructions    []Instruction
}

// Instruction is a turn-by-turn step.
type Instruction struct {
	Text           string
	DistanceMeters int
	DurationSecs   int
	Type           int
}

// Path is the drawable result handed to a session: the ordered points of the
// primary route and the region that frames them.
type Path struct {
	Points          orb.LineString
	Bound           orb.Bound
	DistanceMeters  int
	DurationSeconds int
	Summary         string
	Profile         Profile
	Instructions    []Instruction
}

// NewPath builds a Path from a route. The bound is computed from the points so
// the camera frame always matches the drawn polyline. A route without a
// reported distance is measured along its geometry.
func NewPath(route Route, profile Profile) *Path {
	distance := route.DistanceMeters
	if distance <= 0 {
		distance = int(math.Round(polyline.Length(route.Geometry)))
	}
	return &Path{
		Points:          route.Geometry,
		Bound:           route.Geometry.Bound(),
		DistanceMeters:  distance,
		DurationSeconds: route.DurationSeconds,
		Summary:         route.Summary,
		Profile:         profile,
		Instructions:    route.Instructions,
	}
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
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

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

// Package explorer owns the interaction state of a map exploration session:
// the candidate list produced by a search, the selected place and its detail
// view, and route display from a fixed origin to the selected place.
package explorer

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/placefinder/placefinder/internal/geo"
	"github.com/placefinder/placefinder/internal/places"
	"github.com/placefinder/placefinder/internal/routing"
)

// Sentinel errors for session operations.
var (
	// ErrSessionNotFound indicates the session id is unknown or the session expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoSelection indicates an operation needs a selected place and there is none.
	ErrNoSelection = errors.New("no place selected")
	// ErrCandidateNotFound indicates the id is not in the current candidate list.
	ErrCandidateNotFound = errors.New("candidate not found")
	// ErrTooManySessions indicates the store is at capacity.
	ErrTooManySessions = errors.New("too many sessions")
)

// DefaultOrigin is the fixed reference location routes start from.
var DefaultOrigin = geo.Coordinate{Lat: 25.7602, Lon: -80.1959}

// DefaultRegionSpanMeters is the span of the search region on both axes.
const DefaultRegionSpanMeters = 10000

// DefaultSearchRegion returns the search bias region centered on origin.
func DefaultSearchRegion(origin geo.Coordinate) geo.Region {
	return geo.NewRegion(origin, DefaultRegionSpanMeters, DefaultRegionSpanMeters)
}

// Candidate is a place returned by a text search.
// Two candidates are the same place when their IDs match.
type Candidate struct {
	ID         string
	Name       string
	Title      string
	Coordinate geo.Coordinate
	Category   string
}

func candidateFromPlace(p places.Place) Candidate {
	return Candidate{
		ID:         p.ID,
		Name:       p.Name,
		Title:      p.Title,
		Coordinate: p.Coordinate,
		Category:   p.Category,
	}
}

// OpenInMapsURL links to the candidate on openstreetmap.org.
func (c Candidate) OpenInMapsURL() string {
	return fmt.Sprintf("https://www.openstreetmap.org/?mlat=%.6f&mlon=%.6f#map=17/%.6f/%.6f",
		c.Coordinate.Lat, c.Coordinate.Lon, c.Coordinate.Lat, c.Coordinate.Lon)
}

// Phase is the route display state.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseRouteRequested Phase = "route_requested"
	PhaseRouteActive    Phase = "route_active"
)

// RouteState is replaced wholesale by every completed route request.
//
// Displaying may be true with a nil Path: a failed directions lookup still
// enters route mode.
type RouteState struct {
	Phase       Phase
	Path        *routing.Path
	Destination *Candidate
	Displaying  bool
}

// CameraMode tells how the camera frame was chosen.
type CameraMode string

const (
	// CameraRegion frames a center and span.
	CameraRegion CameraMode = "region"
	// CameraRect frames an explicit bounding rectangle.
	CameraRect CameraMode = "rect"
)

// Camera is the map frame owned by the session.
type Camera struct {
	Mode   CameraMode
	Region geo.Region
	Rect   orb.Bound
}

// RegionCamera frames r.
func RegionCamera(r geo.Region) Camera {
	return Camera{Mode: CameraRegion, Region: r}
}

// RectCamera frames b.
func RectCamera(b orb.Bound) Camera {
	return Camera{Mode: CameraRect, Rect: b}
}

// Bound returns the frame as a bounding rectangle.
func (c Camera) Bound() orb.Bound {
	if c.Mode == CameraRect {
		return c.Rect
	}
	return c.Region.Bound()
}

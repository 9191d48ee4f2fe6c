// Package geo holds the coordinate and region types shared by the place
// search, routing and session packages.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrInvalidCoordinate indicates a latitude or longitude outside its range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// metersPerDegreeLat is the length of one degree of latitude (mean).
const metersPerDegreeLat = 111320.0

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Point converts c to orb's [lon, lat] ordering.
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// FromPoint converts an orb point to a Coordinate.
func FromPoint(p orb.Point) Coordinate {
	return Coordinate{Lat: p.Lat(), Lon: p.Lon()}
}

// IsZero reports whether c is the zero value (0, 0).
func (c Coordinate) IsZero() bool {
	return c.Lat == 0 && c.Lon == 0
}

// Validate checks that c is within [-90, 90] x [-180, 180].
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range [-90, 90]", ErrInvalidCoordinate, c.Lat)
	}
	if math.IsNaN(c.Lon) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range [-180, 180]", ErrInvalidCoordinate, c.Lon)
	}
	return nil
}

// Usable reports whether c is valid and not the zero value. Providers return
// (0, 0) for places they could not locate.
func (c Coordinate) Usable() bool {
	return !c.IsZero() && c.Validate() == nil
}

// Region is a center point with north-south and east-west extents in meters.
type Region struct {
	Center             Coordinate
	LatitudinalMeters  float64
	LongitudinalMeters float64
}

// NewRegion returns a region centered on center with the given spans.
func NewRegion(center Coordinate, latMeters, lonMeters float64) Region {
	return Region{Center: center, LatitudinalMeters: latMeters, LongitudinalMeters: lonMeters}
}

// Bound converts the region to a lon/lat bounding box, clamped to valid ranges.
func (r Region) Bound() orb.Bound {
	halfLat := r.LatitudinalMeters / 2 / metersPerDegreeLat

	cosLat := math.Cos(r.Center.Lat * math.Pi / 180)
	halfLon := 180.0
	if cosLat > 1e-9 {
		halfLon = math.Min(180, r.LongitudinalMeters/2/(metersPerDegreeLat*cosLat))
	}

	return orb.Bound{
		Min: orb.Point{math.Max(-180, r.Center.Lon-halfLon), math.Max(-90, r.Center.Lat-halfLat)},
		Max: orb.Point{math.Min(180, r.Center.Lon+halfLon), math.Min(90, r.Center.Lat+halfLat)},
	}
}

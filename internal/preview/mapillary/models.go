package mapillary

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type imagesResponse struct {
	Data []image `json:"data"`
}

// image is one entry of the Graph API images endpoint. CapturedAt is in
// milliseconds since the epoch.
type image struct {
	ID               string            `json:"id"`
	ThumbURL         string            `json:"thumb_1024_url"`
	CapturedAt       int64             `json:"captured_at"`
	CompassAngle     float64           `json:"compass_angle"`
	ComputedGeometry *geojson.Geometry `json:"computed_geometry"`
	Geometry         *geojson.Geometry `json:"geometry"`
}

// location prefers the computed (SfM corrected) position over the raw GPS one.
func (i *image) location() (orb.Point, bool) {
	for _, g := range []*geojson.Geometry{i.ComputedGeometry, i.Geometry} {
		if g == nil {
			continue
		}
		if p, ok := g.Coordinates.(orb.Point); ok {
			return p, true
		}
	}
	return orb.Point{}, false
}

package explorer

import (
	"github.com/paulmach/orb/geojson"

	"github.com/placefinder/placefinder/internal/geo"
)

// OriginTitle labels the origin annotation.
const OriginTitle = "My location"

// Marker is one annotation on the map.
type Marker struct {
	ID         string
	Title      string
	Coordinate geo.Coordinate
	Selected   bool
	// Destination is set on the marker a displayed route leads to.
	Destination bool
}

// MapView is what the map renders for a session.
type MapView struct {
	Origin  Marker
	Markers []Marker
	// Route is the polyline as a GeoJSON LineString feature; nil when no path exists.
	Route  *geojson.Feature
	Camera Camera
}

// MapView projects the session state onto the map. In route mode only the
// candidate the route leads to keeps its marker.
func (s *Session) MapView() MapView {
	snap := s.Snapshot()
	return Project(snap)
}

// Project builds the map view for a snapshot.
func Project(snap Snapshot) MapView {
	view := MapView{
		Origin: Marker{
			ID:         "origin",
			Title:      OriginTitle,
			Coordinate: snap.Origin,
		},
		Markers: make([]Marker, 0, len(snap.Candidates)),
		Camera:  snap.Camera,
	}

	var destID string
	if snap.Route.Destination != nil {
		destID = snap.Route.Destination.ID
	}

	for _, c := range snap.Candidates {
		if snap.Route.Displaying && c.ID != destID {
			continue
		}
		view.Markers = append(view.Markers, Marker{
			ID:          c.ID,
			Title:       c.Name,
			Coordinate:  c.Coordinate,
			Selected:    snap.Selection != nil && snap.Selection.ID == c.ID,
			Destination: snap.Route.Displaying && c.ID == destID,
		})
	}

	if p := snap.Route.Path; p != nil {
		f := geojson.NewFeature(p.Points)
		f.BBox = geojson.NewBBox(p.Bound)
		f.Properties["distance_meters"] = p.DistanceMeters
		f.Properties["duration_seconds"] = p.DurationSeconds
		f.Properties["profile"] = string(p.Profile)
		if p.Summary != "" {
			f.Properties["summary"] = p.Summary
		}
		view.Route = f
	}

	return view
}

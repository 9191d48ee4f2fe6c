package models

import (
	"github.com/paulmach/orb/geojson"

	"github.com/placefinder/placefinder/internal/explorer"
	"github.com/placefinder/placefinder/internal/preview"
	"github.com/placefinder/placefinder/internal/routing"
	"github.com/placefinder/placefinder/pkg/polyline"
)

// SearchRequest submits a query.
type SearchRequest struct {
	Query string `json:"query" validate:"required,notblank,max=256"`
}

// SelectionRequest selects a candidate from the current list.
type SelectionRequest struct {
	CandidateID string `json:"candidateId" validate:"required,max=128"`
}

// Candidate is one search result.
type Candidate struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Title         string `json:"title,omitempty"`
	Location      Point  `json:"location"`
	Category      string `json:"category,omitempty"`
	OpenInMapsURL string `json:"openInMapsUrl"`
}

// CandidateFrom converts a domain candidate.
func CandidateFrom(c explorer.Candidate) Candidate {
	return Candidate{
		ID:            c.ID,
		Name:          c.Name,
		Title:         c.Title,
		Location:      PointFrom(c.Coordinate),
		Category:      c.Category,
		OpenInMapsURL: c.OpenInMapsURL(),
	}
}

// CandidatesFrom converts a candidate list; never nil.
func CandidatesFrom(cs []explorer.Candidate) []Candidate {
	out := make([]Candidate, 0, len(cs))
	for _, c := range cs {
		out = append(out, CandidateFrom(c))
	}
	return out
}

// SearchResponse is the candidate list after a query.
type SearchResponse struct {
	Query      string      `json:"query"`
	Candidates []Candidate `json:"candidates"`
}

// Path is a drawable route.
type Path struct {
	Points []Point `json:"points"`
	// Polyline is Points in the precision-5 encoded polyline format.
	Polyline        string   `json:"polyline"`
	Bounds          GeoBox   `json:"bounds"`
	DistanceMeters  int      `json:"distanceMeters"`
	DurationSeconds int      `json:"durationSeconds"`
	Summary         string   `json:"summary,omitempty"`
	Profile         string   `json:"profile"`
	Instructions    []string `json:"instructions,omitempty"`
}

// PathFrom converts a domain path; nil stays nil.
func PathFrom(p *routing.Path) *Path {
	if p == nil {
		return nil
	}
	out := &Path{
		Points:          make([]Point, 0, len(p.Points)),
		Polyline:        polyline.Encode(p.Points),
		Bounds:          GeoBoxFrom(p.Bound),
		DistanceMeters:  p.DistanceMeters,
		DurationSeconds: p.DurationSeconds,
		Summary:         p.Summary,
		Profile:         string(p.Profile),
	}
	for _, pt := range p.Points {
		out.Points = append(out.Points, Point{Lat: pt.Lat(), Lon: pt.Lon()})
	}
	for _, in := range p.Instructions {
		if in.Text != "" {
			out.Instructions = append(out.Instructions, in.Text)
		}
	}
	return out
}

// Route is the route display state. Displaying may be true while Path is
// null when the directions lookup found nothing.
type Route struct {
	Phase       string     `json:"phase"`
	Displaying  bool       `json:"displaying"`
	Destination *Candidate `json:"destination,omitempty"`
	Path        *Path      `json:"path"`
}

// RouteFrom converts a domain route state.
func RouteFrom(r explorer.RouteState) Route {
	out := Route{
		Phase:      string(r.Phase),
		Displaying: r.Displaying,
		Path:       PathFrom(r.Path),
	}
	if r.Destination != nil {
		d := CandidateFrom(*r.Destination)
		out.Destination = &d
	}
	return out
}

// Camera is the map frame. Center and span are set for region frames; bounds
// is always set.
type Camera struct {
	Mode               string  `json:"mode"`
	Center             *Point  `json:"center,omitempty"`
	LatitudinalMeters  float64 `json:"latitudinalMeters,omitempty"`
	LongitudinalMeters float64 `json:"longitudinalMeters,omitempty"`
	Bounds             GeoBox  `json:"bounds"`
}

// CameraFrom converts a domain camera.
func CameraFrom(c explorer.Camera) Camera {
	out := Camera{
		Mode:   string(c.Mode),
		Bounds: GeoBoxFrom(c.Bound()),
	}
	if c.Mode == explorer.CameraRegion {
		center := PointFrom(c.Region.Center)
		out.Center = &center
		out.LatitudinalMeters = c.Region.LatitudinalMeters
		out.LongitudinalMeters = c.Region.LongitudinalMeters
	}
	return out
}

// Session is the full session state.
type Session struct {
	ID            string      `json:"id"`
	Query         string      `json:"query"`
	Candidates    []Candidate `json:"candidates"`
	Selection     *Candidate  `json:"selection"`
	DetailVisible bool        `json:"detailVisible"`
	Route         Route       `json:"route"`
	Camera        Camera      `json:"camera"`
	Origin        Point       `json:"origin"`
	CreatedAt     Timestamp   `json:"createdAt"`
	LastActiveAt  Timestamp   `json:"lastActiveAt"`
}

// SessionFrom converts a snapshot.
func SessionFrom(s explorer.Snapshot) Session {
	out := Session{
		ID:            s.ID,
		Query:         s.Query,
		Candidates:    CandidatesFrom(s.Candidates),
		DetailVisible: s.DetailVisible,
		Route:         RouteFrom(s.Route),
		Camera:        CameraFrom(s.Camera),
		Origin:        PointFrom(s.Origin),
		CreatedAt:     NewTimestamp(s.CreatedAt),
		LastActiveAt:  NewTimestamp(s.LastActiveAt),
	}
	if s.Selection != nil {
		sel := CandidateFrom(*s.Selection)
		out.Selection = &sel
	}
	return out
}

// Marker is one map annotation.
type Marker struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Location    Point  `json:"location"`
	Selected    bool   `json:"selected,omitempty"`
	Destination bool   `json:"destination,omitempty"`
}

func markerFrom(m explorer.Marker) Marker {
	return Marker{
		ID:          m.ID,
		Title:       m.Title,
		Location:    PointFrom(m.Coordinate),
		Selected:    m.Selected,
		Destination: m.Destination,
	}
}

// MapView is what a client draws: annotations, the route polyline as a
// GeoJSON feature (null without a path), and the camera frame.
type MapView struct {
	Origin  Marker           `json:"origin"`
	Markers []Marker         `json:"markers"`
	Route   *geojson.Feature `json:"route"`
	Camera  Camera           `json:"camera"`
}

// MapViewFrom converts a projection.
func MapViewFrom(v explorer.MapView) MapView {
	out := MapView{
		Origin:  markerFrom(v.Origin),
		Markers: make([]Marker, 0, len(v.Markers)),
		Route:   v.Route,
		Camera:  CameraFrom(v.Camera),
	}
	for _, m := range v.Markers {
		out.Markers = append(out.Markers, markerFrom(m))
	}
	return out
}

// DirectionsResponse is the outcome of a directions request. Path is null
// when no route was found; route mode is entered either way.
type DirectionsResponse struct {
	Destination Candidate `json:"destination"`
	Path        *Path     `json:"path"`
	Route       Route     `json:"route"`
}

// Preview is a street-level scene near the selection.
type Preview struct {
	Available   bool       `json:"available"`
	CandidateID string     `json:"candidateId"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	ViewerURL   string     `json:"viewerUrl,omitempty"`
	CapturedAt  *Timestamp `json:"capturedAt,omitempty"`
	Location    *Point     `json:"location,omitempty"`
	Heading     *float64   `json:"heading,omitempty"`
	Provider    string     `json:"provider,omitempty"`
}

// PreviewFrom converts a scene; nil means none is available.
func PreviewFrom(candidateID string, s *preview.Scene) Preview {
	if s == nil {
		return Preview{CandidateID: candidateID}
	}
	out := Preview{
		Available:   true,
		CandidateID: candidateID,
		ImageURL:    s.ImageURL,
		ViewerURL:   s.ViewerURL,
		Provider:    s.Provider,
	}
	if !s.CapturedAt.IsZero() {
		ts := NewTimestamp(s.CapturedAt)
		out.CapturedAt = &ts
	}
	loc := PointFrom(s.Coordinate)
	out.Location = &loc
	heading := s.Heading
	out.Heading = &heading
	return out
}

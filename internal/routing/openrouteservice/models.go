package openrouteservice

import "github.com/paulmach/orb/geojson"

// directionsBody is the JSON body of POST /v2/directions/{profile}/geojson.
type directionsBody struct {
	// Coordinates are [lon, lat] pairs, start first.
	Coordinates  [][2]float64  `json:"coordinates"`
	Alternatives *alternatives `json:"alternative_routes,omitempty"`
	Instructions bool          `json:"instructions"`
	Units        string        `json:"units"`
	Language     string        `json:"language"`
}

type alternatives struct {
	// TargetCount includes the primary route.
	TargetCount int `json:"target_count"`
}

// routeCollection is the GeoJSON answer: one LineString feature per route.
type routeCollection struct {
	Features []routeFeature `json:"features"`
}

type routeFeature struct {
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties routeProperties   `json:"properties"`
}

type routeProperties struct {
	Summary struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"summary"`
	Segments []segment `json:"segments"`
}

type segment struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Steps    []step  `json:"steps"`
}

type step struct {
	Distance    float64 `json:"distance"`
	Duration    float64 `json:"duration"`
	Type        int     `json:"type"`
	Instruction string  `json:"instruction"`
	Name        string  `json:"name"`
}

// apiError is the error envelope ORS returns with non-2xx statuses.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Internal ORS codes for inputs that cannot be routed.
const (
	codeRouteNotFound    = 2009
	codePointNotRoutable = 2010
)

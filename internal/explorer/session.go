package explorer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/placefinder/placefinder/internal/geo"
	"github.com/placefinder/placefinder/internal/places"
	"github.com/placefinder/placefinder/internal/preview"
	"github.com/placefinder/placefinder/internal/routing"
)

// PlaceSearcher resolves a query to places. Implemented by *places.Service.
type PlaceSearcher interface {
	Search(ctx context.Context, req places.SearchRequest) ([]places.Place, error)
}

// PathFinder computes a drawable path. Implemented by *routing.Service.
type PathFinder interface {
	Path(ctx context.Context, req routing.DirectionsRequest) (*routing.Path, error)
}

// SceneFinder looks up a scene near a coordinate. Implemented by preview providers.
type SceneFinder interface {
	Scene(ctx context.Context, at geo.Coordinate) (*preview.Scene, error)
}

// SessionConfig holds the collaborators and fixed parameters of a session.
type SessionConfig struct {
	Places PlaceSearcher
	Routes PathFinder
	// Scenes is optional; without it no preview is ever available.
	Scenes SceneFinder

	// Origin is where routes start (default: DefaultOrigin).
	Origin geo.Coordinate
	// SearchRegion biases searches and frames the initial camera (default: 10 km around Origin).
	SearchRegion geo.Region
	// Profile is the transport mode for routes (default: driving-car).
	Profile routing.Profile
	// SearchLimit caps the candidate list (0 leaves it to the place service).
	SearchLimit int

	Logger zerolog.Logger
	// Now is the clock (default: time.Now).
	Now func() time.Time
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Origin.IsZero() {
		c.Origin = DefaultOrigin
	}
	if c.SearchRegion.Center.IsZero() {
		c.SearchRegion = DefaultSearchRegion(c.Origin)
	}
	if c.Profile == "" {
		c.Profile = routing.ProfileDrive
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Session is one user's map exploration state.
//
// The mutex is held only while state is read or swapped, never across a
// provider call. Overlapping searches or route requests therefore complete in
// any order and the last one to finish wins, even if it was issued first.
type Session struct {
	id      string
	cfg     SessionConfig
	logger  zerolog.Logger
	created time.Time

	mu         sync.Mutex
	query      string
	candidates []Candidate
	selection  *Candidate
	route      RouteState
	camera     Camera
	scene      *preview.Scene
	sceneFor   string
	lastActive time.Time
}

// NewSession creates a session in the idle phase with the camera on the search region.
func NewSession(id string, cfg SessionConfig) *Session {
	cfg = cfg.withDefaults()
	now := cfg.Now()
	return &Session{
		id:         id,
		cfg:        cfg,
		logger:     cfg.Logger.With().Str("session_id", id).Logger(),
		created:    now,
		candidates: []Candidate{},
		route:      RouteState{Phase: PhaseIdle},
		camera:     RegionCamera(cfg.SearchRegion),
		lastActive: now,
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Origin returns the fixed route origin.
func (s *Session) Origin() geo.Coordinate {
	return s.cfg.Origin
}

// Search replaces the candidate list with the places matching query inside
// the search region. A failed lookup yields an empty list; the failure is
// logged and never returned.
func (s *Session) Search(ctx context.Context, query string) []Candidate {
	s.touch()

	found, err := s.cfg.Places.Search(ctx, places.SearchRequest{
		Query: query,
		Bound: s.cfg.SearchRegion.Bound(),
		Limit: s.cfg.SearchLimit,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("query", query).Msg("search failed, showing no results")
		found = nil
	}

	candidates := make([]Candidate, 0, len(found))
	for _, p := range found {
		if !p.Coordinate.Usable() {
			continue
		}
		candidates = append(candidates, candidateFromPlace(p))
	}

	s.mu.Lock()
	s.query = query
	s.candidates = candidates
	s.mu.Unlock()

	s.logger.Debug().Str("query", query).Int("candidates", len(candidates)).Msg("candidate list replaced")

	return cloneCandidates(candidates)
}

// Select sets the selection; nil clears it and hides the detail view.
// Any candidate is accepted, listed or not. Route mode is left untouched.
func (s *Session) Select(c *Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = s.cfg.Now()
	if c == nil {
		s.selection = nil
		return
	}
	sel := *c
	s.selection = &sel
	if s.sceneFor != sel.ID {
		s.scene = nil
		s.sceneFor = ""
	}
}

// SelectByID selects the candidate with the given id from the current list.
func (s *Session) SelectByID(id string) (Candidate, error) {
	s.mu.Lock()
	var (
		found Candidate
		ok    bool
	)
	for _, c := range s.candidates {
		if c.ID == id {
			found, ok = c, true
			break
		}
	}
	s.mu.Unlock()

	if !ok {
		return Candidate{}, ErrCandidateNotFound
	}
	s.Select(&found)
	return found, nil
}

// Selection returns the selected candidate, if any.
func (s *Session) Selection() *Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCandidate(s.selection)
}

// DetailVisible reports whether the detail view is shown, which is exactly
// whether a candidate is selected.
func (s *Session) DetailVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection != nil
}

// RequestRoute fetches a path from origin to destination and enters route
// mode whatever the outcome. The detail view is closed and, when a path was
// found, the camera is re-framed to its bound. The returned path is nil when
// the lookup failed or found nothing.
func (s *Session) RequestRoute(ctx context.Context, origin geo.Coordinate, destination Candidate) *routing.Path {
	return s.requestRoute(ctx, origin, destination).Path
}

// requestRoute does the work of RequestRoute and returns the route state it
// committed, which later calls may already have replaced.
func (s *Session) requestRoute(ctx context.Context, origin geo.Coordinate, destination Candidate) RouteState {
	s.mu.Lock()
	s.route.Phase = PhaseRouteRequested
	s.lastActive = s.cfg.Now()
	s.mu.Unlock()

	path, err := s.cfg.Routes.Path(ctx, routing.DirectionsRequest{
		Origin:      origin,
		Destination: destination.Coordinate,
		Profile:     s.cfg.Profile,
	})
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("destination_id", destination.ID).
			Msg("route lookup failed, entering route mode without a path")
		path = nil
	}

	dest := destination
	s.mu.Lock()
	defer s.mu.Unlock()
	s.route = RouteState{
		Phase:       PhaseRouteActive,
		Path:        path,
		Destination: &dest,
		Displaying:  true,
	}
	s.selection = nil
	if path != nil {
		s.camera = RectCamera(path.Bound)
	}
	return cloneRoute(s.route)
}

// RequestDirections routes from the origin to the current selection and
// returns the route state that request produced.
func (s *Session) RequestDirections(ctx context.Context) (RouteState, error) {
	sel := s.Selection()
	if sel == nil {
		return RouteState{}, ErrNoSelection
	}
	return s.requestRoute(ctx, s.cfg.Origin, *sel), nil
}

// ClearRoute leaves route mode and returns the camera to the search region.
func (s *Session) ClearRoute() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = s.cfg.Now()
	s.route = RouteState{Phase: PhaseIdle}
	s.camera = RegionCamera(s.cfg.SearchRegion)
}

// Route returns a copy of the route state.
func (s *Session) Route() RouteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRoute(s.route)
}

// Camera returns the current camera frame.
func (s *Session) Camera() Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

// Candidates returns a copy of the candidate list.
func (s *Session) Candidates() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCandidates(s.candidates)
}

// Preview returns a scene near the selected candidate, or nil when none is
// available. Lookup failures are logged and reported as nil.
func (s *Session) Preview(ctx context.Context) (*preview.Scene, error) {
	s.mu.Lock()
	sel := cloneCandidate(s.selection)
	cached := s.scene
	cachedFor := s.sceneFor
	s.mu.Unlock()

	if sel == nil {
		return nil, ErrNoSelection
	}
	if cached != nil && cachedFor == sel.ID {
		return cached, nil
	}
	if s.cfg.Scenes == nil {
		return nil, nil
	}

	scene, err := s.cfg.Scenes.Scene(ctx, sel.Coordinate)
	if err != nil {
		s.logger.Warn().Err(err).Str("candidate_id", sel.ID).Msg("scene lookup failed")
		return nil, nil
	}

	s.mu.Lock()
	// keep it only if the selection did not move on meanwhile
	if s.selection != nil && s.selection.ID == sel.ID {
		s.scene = scene
		s.sceneFor = sel.ID
	}
	s.mu.Unlock()

	return scene, nil
}

// Snapshot is a consistent copy of the whole session state.
type Snapshot struct {
	ID            string
	Query         string
	Candidates    []Candidate
	Selection     *Candidate
	DetailVisible bool
	Route         RouteState
	Camera        Camera
	Origin        geo.Coordinate
	CreatedAt     time.Time
	LastActiveAt  time.Time
}

// Snapshot returns the session state as of one instant.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		ID:            s.id,
		Query:         s.query,
		Candidates:    cloneCandidates(s.candidates),
		Selection:     cloneCandidate(s.selection),
		DetailVisible: s.selection != nil,
		Route:         cloneRoute(s.route),
		Camera:        s.camera,
		Origin:        s.cfg.Origin,
		CreatedAt:     s.created,
		LastActiveAt:  s.lastActive,
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = s.cfg.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// NormalizeQuery trims surrounding whitespace; an empty result means there is nothing to search.
func NormalizeQuery(q string) string {
	return strings.TrimSpace(q)
}

func cloneCandidates(in []Candidate) []Candidate {
	out := make([]Candidate, len(in))
	copy(out, in)
	return out
}

func cloneCandidate(c *Candidate) *Candidate {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// cloneRoute copies the destination; the path is immutable once built and is shared.
func cloneRoute(r RouteState) RouteState {
	r.Destination = cloneCandidate(r.Destination)
	return r
}

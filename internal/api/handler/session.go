package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/placefinder/placefinder/internal/api/models"
	"github.com/placefinder/placefinder/internal/api/response"
	"github.com/placefinder/placefinder/internal/explorer"
)

// SessionStore creates and looks up sessions. Implemented by *explorer.Store.
type SessionStore interface {
	Create() (*explorer.Session, error)
	Get(id string) (*explorer.Session, error)
	Delete(id string) error
}

// SessionHandler translates HTTP events into session operations and
// projects session state back to JSON.
type SessionHandler struct {
	store     SessionStore
	validator *Validator
	logger    zerolog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(store SessionStore, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		store:     store,
		validator: NewValidator(),
		logger:    logger,
	}
}

// Create handles POST /v1/sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Create()
	if err != nil {
		if errors.Is(err, explorer.ErrTooManySessions) {
			response.ServiceUnavailable(w, r, "session capacity reached, try again later")
			return
		}
		h.logger.Error().Err(err).Msg("create session")
		response.InternalError(w, r, "could not create session")
		return
	}

	response.Created(w, r, "/v1/sessions/"+sess.ID(), models.SessionFrom(sess.Snapshot()))
}

// Get handles GET /v1/sessions/{sessionId}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, models.SessionFrom(sess.Snapshot()))
}

// Delete handles DELETE /v1/sessions/{sessionId}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(chi.URLParam(r, "sessionId")); err != nil {
		response.NotFound(w, r, "session not found")
		return
	}
	response.NoContent(w, r)
}

// Search handles POST /v1/sessions/{sessionId}/search. A query that is
// blank after trimming is rejected; otherwise the candidate list is replaced,
// possibly with an empty one when the lookup found nothing or failed.
func (h *SessionHandler) Search(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.SearchRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	query := explorer.NormalizeQuery(req.Query)
	candidates := sess.Search(r.Context(), query)

	response.JSON(w, r, http.StatusOK, models.SearchResponse{
		Query:      query,
		Candidates: models.CandidatesFrom(candidates),
	})
}

// Select handles PUT /v1/sessions/{sessionId}/selection.
func (h *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.SelectionRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	if _, err := sess.SelectByID(req.CandidateID); err != nil {
		if errors.Is(err, explorer.ErrCandidateNotFound) {
			response.NotFound(w, r, "candidate not in the current results")
			return
		}
		response.InternalError(w, r, "could not select candidate")
		return
	}

	response.JSON(w, r, http.StatusOK, models.SessionFrom(sess.Snapshot()))
}

// Deselect handles DELETE /v1/sessions/{sessionId}/selection, which closes
// the detail view.
func (h *SessionHandler) Deselect(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Select(nil)
	response.NoContent(w, r)
}

// Preview handles GET /v1/sessions/{sessionId}/selection/preview. A missing
// scene is a normal outcome reported with available=false.
func (h *SessionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	sel := sess.Selection()
	if sel == nil {
		response.NoSelection(w, r)
		return
	}

	scene, err := sess.Preview(r.Context())
	if err != nil {
		if errors.Is(err, explorer.ErrNoSelection) {
			response.NoSelection(w, r)
			return
		}
		response.InternalError(w, r, "could not load preview")
		return
	}

	response.JSON(w, r, http.StatusOK, models.PreviewFrom(sel.ID, scene))
}

// Directions handles POST /v1/sessions/{sessionId}/directions. Route mode is
// entered even when no path is found; the response then carries a null path.
func (h *SessionHandler) Directions(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	route, err := sess.RequestDirections(r.Context())
	if err != nil {
		if errors.Is(err, explorer.ErrNoSelection) {
			response.NoSelection(w, r)
			return
		}
		response.InternalError(w, r, "could not request directions")
		return
	}

	response.JSON(w, r, http.StatusOK, models.DirectionsResponse{
		Destination: models.CandidateFrom(*route.Destination),
		Path:        models.PathFrom(route.Path),
		Route:       models.RouteFrom(route),
	})
}

// ClearRoute handles DELETE /v1/sessions/{sessionId}/route.
func (h *SessionHandler) ClearRoute(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.ClearRoute()
	response.NoContent(w, r)
}

// MapView handles GET /v1/sessions/{sessionId}/map.
func (h *SessionHandler) MapView(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, models.MapViewFrom(sess.MapView()))
}

// session resolves {sessionId}; it writes a 404 and returns false when the
// session is unknown or expired.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*explorer.Session, bool) {
	sess, err := h.store.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		response.NotFound(w, r, "session not found")
		return nil, false
	}
	return sess, true
}

// Package handler provides the HTTP handlers of the placefinder API.
package handler

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/placefinder/placefinder/internal/api/models"
	"github.com/placefinder/placefinder/internal/api/response"
	"github.com/placefinder/placefinder/internal/provider/resilience"
)

// SessionCounter reports the number of live sessions. Implemented by *explorer.Store.
type SessionCounter interface {
	Len() int
}

// OpsHandler serves liveness, readiness and provider status.
type OpsHandler struct {
	version   string
	buildTime string
	providers *resilience.Registry
	sessions  SessionCounter
	draining  atomic.Bool
}

// NewOpsHandler creates an OpsHandler. providers and sessions may be nil.
func NewOpsHandler(version, buildTime string, providers *resilience.Registry, sessions SessionCounter) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		providers: providers,
		sessions:  sessions,
	}
}

// Drain makes readiness fail so a load balancer stops routing new traffic
// while in-flight requests finish.
func (h *OpsHandler) Drain() {
	h.draining.Store(true)
}

// HealthCheck handles GET /v1/ops/health.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.NewTimestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. Open provider circuits do not
// fail readiness: sessions keep working and show empty results meanwhile.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		response.JSON(w, r, http.StatusServiceUnavailable, models.Health{
			Status: models.HealthStatusFail,
			Time:   models.NewTimestamp(time.Now()),
			Details: map[string]any{
				"reason": "shutting down",
			},
		})
		return
	}
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.NewTimestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.NewTimestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
	}

	if h.sessions != nil {
		detail := fmt.Sprintf("%d active", h.sessions.Len())
		status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
			Name:   "sessions",
			Status: models.HealthStatusOK,
			Detail: &detail,
		})
	}

	if h.providers != nil {
		for _, ph := range h.providers.GetAllHealth() {
			ps := providerStatus(ph)
			status.Providers = append(status.Providers, ps)
			status.Status = worse(status.Status, ps.Status)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func providerStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            ph.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        ph.CircuitState.String(),
		ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
	}
	switch {
	case ph.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case ph.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}
	if ph.LastSuccessAt != nil {
		ts := models.NewTimestamp(*ph.LastSuccessAt)
		ps.LastSuccessAt = &ts
	}
	if ph.LastFailureAt != nil {
		ts := models.NewTimestamp(*ph.LastFailureAt)
		ps.LastFailureAt = &ts
	}
	if ph.StateChangedAt != nil {
		ts := models.NewTimestamp(*ph.StateChangedAt)
		ps.CircuitChangedAt = &ts
	}
	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}

// worse returns the more severe status. A failed provider only degrades the
// service as a whole.
func worse(current, provider models.HealthStatus) models.HealthStatus {
	if provider != models.HealthStatusOK {
		return models.HealthStatusDegraded
	}
	return current
}

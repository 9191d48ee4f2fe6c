package resilience

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Monitored is a provider whose circuit the registry can inspect.
type Monitored interface {
	CircuitState() gobreaker.State
	CircuitCounts() gobreaker.Counts
}

// ProviderHealth is a point-in-time view of one provider. StateChangedAt is
// nil until the circuit first leaves closed.
type ProviderHealth struct {
	Name           string
	CircuitState   gobreaker.State
	Counts         gobreaker.Counts
	LastSuccessAt  *time.Time
	LastFailureAt  *time.Time
	LastError      string
	StateChangedAt *time.Time
}

// IsHealthy reports a closed circuit.
func (h *ProviderHealth) IsHealthy() bool { return h.CircuitState == gobreaker.StateClosed }

// IsDegraded reports a half-open circuit.
func (h *ProviderHealth) IsDegraded() bool { return h.CircuitState == gobreaker.StateHalfOpen }

// IsUnhealthy reports an open circuit.
func (h *ProviderHealth) IsUnhealthy() bool { return h.CircuitState == gobreaker.StateOpen }

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock sets the time source used for the recorded timestamps.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// Registry collects the providers of one process and the outcome of their
// latest calls for the status endpoint.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*entry
	now       func() time.Time
}

type entry struct {
	source         Monitored
	lastSuccessAt  *time.Time
	lastFailureAt  *time.Time
	lastError      string
	stateChangedAt *time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		providers: make(map[string]*entry),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register tracks source under name, replacing an earlier registration.
func (r *Registry) Register(name string, source Monitored) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &entry{source: source}
}

// RecordSuccess stamps the provider's last successful call.
func (r *Registry) RecordSuccess(name string) {
	r.update(name, func(e *entry, now time.Time) { e.lastSuccessAt = &now })
}

// RecordFailure stamps the provider's last failed call and keeps its error.
func (r *Registry) RecordFailure(name string, err error) {
	r.update(name, func(e *entry, now time.Time) {
		e.lastFailureAt = &now
		if err != nil {
			e.lastError = err.Error()
		}
	})
}

func (r *Registry) recordTransition(name string) {
	r.update(name, func(e *entry, now time.Time) { e.stateChangedAt = &now })
}

// update ignores unknown providers.
func (r *Registry) update(name string, fn func(*entry, time.Time)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.providers[name]; ok {
		fn(e, r.now())
	}
}

// GetHealth returns one provider's health, or nil when it is not registered.
func (r *Registry) GetHealth(name string) *ProviderHealth {
	r.mu.RLock()
	e, ok := r.providers[name]
	var snap entry
	if ok {
		snap = *e
	}
	r.mu.RUnlock()

	if !ok {
		return nil
	}
	return snap.health(name)
}

// GetAllHealth returns every provider's health ordered by name.
func (r *Registry) GetAllHealth() []*ProviderHealth {
	r.mu.RLock()
	snaps := make(map[string]entry, len(r.providers))
	for name, e := range r.providers {
		snaps[name] = *e
	}
	r.mu.RUnlock()

	all := make([]*ProviderHealth, 0, len(snaps))
	for name, snap := range snaps {
		all = append(all, snap.health(name))
	}
	slices.SortFunc(all, func(a, b *ProviderHealth) int { return cmp.Compare(a.Name, b.Name) })
	return all
}

// health reads the breaker, which must happen outside r.mu: breakers call
// back into the registry while holding their own lock.
func (e entry) health(name string) *ProviderHealth {
	return &ProviderHealth{
		Name:           name,
		CircuitState:   e.source.CircuitState(),
		Counts:         e.source.CircuitCounts(),
		LastSuccessAt:  e.lastSuccessAt,
		LastFailureAt:  e.lastFailureAt,
		LastError:      e.lastError,
		StateChangedAt: e.stateChangedAt,
	}
}

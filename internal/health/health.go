// Package health reports whether the server's dependencies are usable.
//
// The server registers one probe per dependency it talks to (database ping,
// payment circuit) and /health returns the aggregate verdict with
// per-dependency detail, so a degraded deployment names the part that broke.
package health

import (
	"context"
	"sync"
)

// Status is one dependency's verdict.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker probes one dependency.
type Checker func(ctx context.Context) Status

// Func adapts an error-returning probe into a Checker: nil means healthy,
// any error becomes the failure detail.
func Func(name string, probe func(ctx context.Context) error) Checker {
	return func(ctx context.Context) Status {
		if err := probe(ctx); err != nil {
			return Status{Name: name, Healthy: false, Detail: err.Error()}
		}
		return Status{Name: name, Healthy: true}
	}
}

// Registry holds the registered probes and runs them on demand.
// Probes run in registration order so /health output is stable.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	probes map[string]Checker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{probes: make(map[string]Checker)}
}

// Register adds a probe. Registering a name again replaces its probe.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	if _, ok := r.probes[name]; !ok {
		r.order = append(r.order, name)
	}
	r.probes[name] = check
	r.mu.Unlock()
}

// CheckAll runs every probe and returns the aggregate verdict plus the
// per-dependency statuses.
func (r *Registry) CheckAll(ctx context.Context) (bool, []Status) {
	r.mu.RLock()
	checks := make([]Checker, 0, len(r.order))
	for _, name := range r.order {
		checks = append(checks, r.probes[name])
	}
	r.mu.RUnlock()

	healthy := true
	statuses := make([]Status, len(checks))
	for i, check := range checks {
		statuses[i] = check(ctx)
		if !statuses[i].Healthy {
			healthy = false
		}
	}
	return healthy, statuses
}

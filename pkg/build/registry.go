package build

import (
	"fmt"
	"sort"
)

// Registry manages available build backends and performs detection
type Registry struct {
	backends []BackendRegistration
}

// NewRegistry creates a registry with the default backends. binary is the
// path the Go backend packages into.
func NewRegistry(binary string) *Registry {
	r := &Registry{}

	// Higher priority backends are checked first
	r.Register(NewGoBackend(binary), PriorityHigh) // Go projects (go.mod)
	r.Register(NewPythonBackend(), PriorityHigh)   // Python projects
	r.Register(NewNodeBackend(), PriorityHigh)     // Node.js projects (package.json)
	r.Register(NewMakeBackend(), PriorityMedium)   // Generic Makefile projects
	r.Register(NewNullBackend(), PriorityLow)      // Fallback

	return r
}

// Register adds a backend to the registry with the specified priority
func (r *Registry) Register(backend Backend, priority BackendPriority) {
	r.backends = append(r.backends, BackendRegistration{
		Backend:  backend,
		Priority: priority,
	})

	// Stable so registration order breaks ties
	sort.SliceStable(r.backends, func(i, j int) bool {
		return r.backends[i].Priority > r.backends[j].Priority
	})
}

// Detect finds the most appropriate backend for the given project root
func (r *Registry) Detect(root string) (Backend, error) {
	for _, registration := range r.backends {
		if registration.Backend.Detect(root) {
			return registration.Backend, nil
		}
	}
	return nil, fmt.Errorf("no suitable backend found for project at %s", root)
}

// GetByName returns a backend by its name
func (r *Registry) GetByName(name string) (Backend, error) {
	for _, registration := range r.backends {
		if registration.Backend.Name() == name {
			return registration.Backend, nil
		}
	}
	return nil, fmt.Errorf("backend not found: %s", name)
}

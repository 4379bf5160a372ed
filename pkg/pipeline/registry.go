package pipeline

import (
	"sync"

	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
)

// Factory builds a fresh Step instance. Steps are stateless between
// pipeline runs, so a factory is just a constructor.
type Factory func() Step

// Registry maps step type names to factories. It is safe for concurrent
// registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New instantiates the step registered under name, or returns UnknownStep.
func (r *Registry) New(name string) (Step, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, pipeerr.UnknownStep("registry.New", name)
	}
	return f(), nil
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

package backend

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"driftwatch/internal/config"
)

// Registry maps model names to backends
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds or replaces a backend under its name
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name()] = b
}

// Get returns the backend for a model name
func (r *Registry) Get(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	return b, ok
}

// Names returns the registered model names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// FromConfig builds a registry with one backend per configured model
func FromConfig(ctx context.Context, cfgs []config.BackendConfig) (*Registry, error) {
	r := NewRegistry()
	for _, c := range cfgs {
		b, err := New(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", c.Name, err)
		}
		r.Register(b)
	}
	return r, nil
}

// New builds a single backend from its config
func New(ctx context.Context, c config.BackendConfig) (Backend, error) {
	switch c.Provider {
	case config.ProviderOpenAI:
		return NewOpenAI(c)
	case config.ProviderGemini:
		return NewGemini(ctx, c)
	case config.ProviderHTTP:
		return NewHTTP(c), nil
	case config.ProviderMock:
		return NewPersona(c.Name), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", c.Provider)
	}
}

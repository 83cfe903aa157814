package endpoint

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an unconnected adapter from a service configuration.
type Factory func(config *ServiceConfig) (Adapter, error)

// Registry holds adapter factories indexed by service type.
type Registry struct {
	factories map[ServiceType]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[ServiceType]Factory),
	}
}

// Register adds a factory for the given service type.
// Panics if the type is already registered.
func (r *Registry) Register(serviceType ServiceType, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[serviceType]; exists {
		panic(fmt.Sprintf("adapter factory already registered: %s", serviceType))
	}
	r.factories[serviceType] = factory
}

// Get returns the factory for the given service type.
func (r *Registry) Get(serviceType ServiceType) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[serviceType]
	return factory, ok
}

// List returns all registered service types, sorted.
func (r *Registry) List() []ServiceType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]ServiceType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Create instantiates an adapter for config.Type.
func (r *Registry) Create(config *ServiceConfig) (Adapter, error) {
	if config == nil {
		return nil, &ValidationError{Field: "config", Message: "is required"}
	}
	factory, ok := r.Get(config.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregisteredType, config.Type)
	}
	return factory(config.WithDefaults())
}

// --- Default Global Registry ---

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide factory registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a factory to the default registry.
func Register(serviceType ServiceType, factory Factory) {
	defaultRegistry.Register(serviceType, factory)
}

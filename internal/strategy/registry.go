package strategy

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknown is returned when a strategy name has no registered factory.
var ErrUnknown = errors.New("unknown strategy")

// Params carries caller-supplied strategy parameters, decoded from JSON.
type Params map[string]interface{}

// Int returns the named parameter as an int, or def when absent or not
// numeric. JSON numbers decode as float64, so both forms are accepted.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

// Float returns the named parameter as a float64, or def when absent.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case int:
		return float64(v)
	case float64:
		return v
	default:
		return def
	}
}

// Factory builds a configured strategy instance from caller parameters.
type Factory func(params Params) (Strategy, error)

// Registry maps strategy names to factories. Duplicate registrations fail
// eagerly so configuration mistakes surface at startup, not mid-run.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a strategy factory under a unique name.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("strategy: name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("strategy: factory for %q cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("strategy: %q is already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// New builds a strategy instance by name.
func (r *Registry) New(name string, params Params) (Strategy, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("strategy: %w: %q", ErrUnknown, name)
	}
	return factory(params)
}

// Names returns all registered strategy names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Register adds a strategy factory to the default registry.
func Register(name string, factory Factory) error {
	return defaultRegistry.Register(name, factory)
}

// New builds a strategy from the default registry.
func New(name string, params Params) (Strategy, error) {
	return defaultRegistry.New(name, params)
}

// Names lists the default registry's strategies.
func Names() []string {
	return defaultRegistry.Names()
}

func mustRegister(name string, factory Factory) {
	if err := defaultRegistry.Register(name, factory); err != nil {
		panic(err)
	}
}

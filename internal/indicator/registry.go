package indicator

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// ErrUnknown is returned when an unregistered indicator name is requested.
// A strategy declaring an unknown indicator is a configuration error caught
// before any bar is simulated.
var ErrUnknown = errors.New("indicator: unknown indicator")

// Params holds the numeric parameters of one indicator request.
type Params map[string]float64

// Int returns the named parameter as an int, or def when absent.
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(v)
	}
	return def
}

// Float returns the named parameter, or def when absent.
func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Config identifies one indicator a strategy wants precomputed.
// Column selects the source price column for single-series indicators
// and defaults to close.
type Config struct {
	Name   string `json:"name"`
	Params Params `json:"params,omitempty"`
	Column string `json:"column,omitempty"`
}

// Output maps a column key (e.g. "sma_20", "macd_line") to its computed
// values, one per input bar.
type Output map[string][]Value

// ComputeFunc computes one indicator over a full series. Implementations
// must be pure: identical inputs always produce identical outputs.
type ComputeFunc func(s Series, cfg Config) (Output, error)

// Registry maps indicator names to their compute functions. Registration
// collisions fail fast; unknown names fail at precompute time, before any
// bar is processed.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]ComputeFunc
}

// NewRegistry creates an empty indicator registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]ComputeFunc)}
}

// Register adds an indicator under a unique name.
func (r *Registry) Register(name string, fn ComputeFunc) error {
	if name == "" {
		return fmt.Errorf("indicator: name cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("indicator: compute function for %q cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("indicator: %q is already registered", name)
	}
	r.entries[name] = fn
	return nil
}

// Compute runs the named indicator over the series.
func (r *Registry) Compute(s Series, cfg Config) (Output, error) {
	r.mu.RLock()
	fn, ok := r.entries[cfg.Name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, cfg.Name)
	}
	return fn(s, cfg)
}

// Names returns all registered indicator names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Register adds an indicator to the default registry.
func Register(name string, fn ComputeFunc) error {
	return defaultRegistry.Register(name, fn)
}

// Compute runs an indicator from the default registry.
func Compute(s Series, cfg Config) (Output, error) {
	return defaultRegistry.Compute(s, cfg)
}

// Names lists the default registry's indicators.
func Names() []string {
	return defaultRegistry.Names()
}

func mustRegister(name string, fn ComputeFunc) {
	if err := defaultRegistry.Register(name, fn); err != nil {
		panic(err)
	}
}

// periodKey builds column keys like "sma_20" and "rsi_14".
func periodKey(name string, period int) string {
	return name + "_" + strconv.Itoa(period)
}

package engines

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/rubiojr/sieve/pkg/core"
)

// SpecFunc returns a fresh spec for an engine.
type SpecFunc func() Spec

// Registry maps engines to their spec constructors.
type Registry struct {
	mu    sync.RWMutex
	specs map[core.Engine]SpecFunc
}

var defaultRegistry = NewRegistry()

func init() {
	defaultRegistry.specs[core.Bing] = BingSpec
	defaultRegistry.specs[core.Brave] = BraveSpec
	defaultRegistry.specs[core.DuckDuckGo] = DuckDuckGoSpec
}

func NewRegistry() *Registry {
	return &Registry{specs: make(map[core.Engine]SpecFunc)}
}

// Default returns a copy of the registry holding the built-in engines.
func Default() *Registry {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()

	r := NewRegistry()
	for e, fn := range defaultRegistry.specs {
		r.specs[e] = fn
	}
	return r
}

// Register adds or replaces the spec constructor for an engine.
func (r *Registry) Register(e core.Engine, fn SpecFunc) error {
	if !e.Valid() {
		return errors.Wrapf(ErrUnknownEngine, "%d", int(e))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[e] = fn
	return nil
}

// Spec returns the spec of an engine.
func (r *Registry) Spec(e core.Engine) (Spec, error) {
	r.mu.RLock()
	fn, ok := r.specs[e]
	r.mu.RUnlock()
	if !ok {
		return Spec{}, errors.Wrapf(ErrUnknownEngine, "%s", e)
	}
	return fn(), nil
}

// Lookup resolves a slug to its spec.
func (r *Registry) Lookup(slug string) (Spec, error) {
	e, err := core.ParseEngine(slug)
	if err != nil {
		return Spec{}, err
	}
	return r.Spec(e)
}

// Engines lists registered engines in declaration order.
func (r *Registry) Engines() []core.Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []core.Engine
	for _, e := range core.Engines() {
		if _, ok := r.specs[e]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Configure adjusts a default spec and picks the adapter options for it.
type Configure func(Spec) (Spec, Options)

// Build constructs validated adapters for the given engines. Any invalid
// spec fails the whole call. configure may be nil.
func (r *Registry) Build(list []core.Engine, configure Configure) ([]*Adapter, error) {
	adapters := make([]*Adapter, 0, len(list))
	for _, e := range list {
		spec, err := r.Spec(e)
		if err != nil {
			return nil, err
		}
		var opts Options
		if configure != nil {
			spec, opts = configure(spec)
		}
		a, err := NewAdapter(spec, opts)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

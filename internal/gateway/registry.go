package gateway

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrDuplicateCapability = errors.New("duplicate capability")
	ErrRegistrySealed      = errors.New("gateway registry is sealed")
)

// Registry holds the gateways known to the orchestrator. It is filled once at
// startup and sealed; lookups after that are read-only.
type Registry struct {
	mu       sync.RWMutex
	gateways []Gateway
	byName   map[string]Gateway
	owners   map[string]string
	sealed   bool
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Gateway),
		owners: make(map[string]string),
	}
}

// Register adds g. Capability names must be unique across every registered
// gateway; a clash is reported instead of letting the first registration shadow the second.
func (r *Registry) Register(g Gateway) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}
	name := g.Name()
	if name == "" {
		return fmt.Errorf("gateway name is required")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("gateway %q already registered", name)
	}

	seen := make(map[string]bool)
	for _, d := range g.Declarations() {
		if d.Name == "" {
			return fmt.Errorf("gateway %q declares a capability without a name", name)
		}
		if owner, ok := r.owners[d.Name]; ok {
			return fmt.Errorf("%w: %q declared by %q and %q", ErrDuplicateCapability, d.Name, owner, name)
		}
		if seen[d.Name] {
			return fmt.Errorf("%w: %q declared twice by %q", ErrDuplicateCapability, d.Name, name)
		}
		seen[d.Name] = true
	}

	for n := range seen {
		r.owners[n] = name
	}
	r.byName[name] = g
	r.gateways = append(r.gateways, g)
	return nil
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Resolve returns the first gateway, in registration order, that has capability.
func (r *Registry) Resolve(capability string) (Gateway, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.gateways {
		if g.Has(capability) {
			return g, true
		}
	}
	return nil, false
}

// Manifest merges the declarations of every gateway in registration order.
func (r *Registry) Manifest() []Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Declaration
	for _, g := range r.gateways {
		out = append(out, g.Declarations()...)
	}
	return out
}

func (r *Registry) Get(name string) (Gateway, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.byName[name]
	return g, ok
}

func (r *Registry) Gateways() []Gateway {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Gateway(nil), r.gateways...)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gateways))
	for _, g := range r.gateways {
		names = append(names, g.Name())
	}
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.gateways)
}

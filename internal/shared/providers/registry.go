package providers

import (
	"fmt"
	"sort"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// Registry looks up the adapter for a marketplace.
type Registry struct {
	adapters map[marketplace.Provider]Adapter
}

// NewRegistry indexes adapters by the provider they serve.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[marketplace.Provider]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Provider()] = a
	}
	return r
}

// NewDefaultRegistry wires the three supported marketplaces.
func NewDefaultRegistry(endpoints map[marketplace.Provider]Endpoint) *Registry {
	return NewRegistry(
		NewDoorDash(endpoints[marketplace.ProviderDoorDash]),
		NewUberEats(endpoints[marketplace.ProviderUberEats]),
		NewGrubhub(endpoints[marketplace.ProviderGrubhub]),
	)
}

// Get returns the adapter for p.
func (r *Registry) Get(p marketplace.Provider) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", marketplace.ErrUnknownProvider, p)
	}
	return a, nil
}

// Providers lists the registered providers, sorted.
func (r *Registry) Providers() []marketplace.Provider {
	out := make([]marketplace.Provider, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

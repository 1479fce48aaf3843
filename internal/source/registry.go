package source

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Checker-Finance/experiences/pkg/model"
)

// Registry is the fixed set of sources consulted by the aggregator: the local
// catalog plus providers in registration order. It is not mutated after
// NewRegistry returns.
type Registry struct {
	local     LocalAdapter
	providers []Adapter
	byName    map[string]Adapter
}

// NewRegistry validates and freezes the source list.
func NewRegistry(local LocalAdapter, providers ...Adapter) (*Registry, error) {
	if local == nil {
		return nil, errors.New("registry: local adapter is required")
	}
	if local.Name() != model.SourceLocal {
		return nil, fmt.Errorf("registry: local adapter must be named %q, got %q", model.SourceLocal, local.Name())
	}

	byName := make(map[string]Adapter, len(providers))
	list := make([]Adapter, 0, len(providers))
	for _, p := range providers {
		if p == nil {
			continue
		}
		name := p.Name()
		switch {
		case strings.TrimSpace(name) == "":
			return nil, errors.New("registry: provider with empty name")
		case name == model.SourceLocal:
			return nil, fmt.Errorf("registry: provider may not use the reserved name %q", model.SourceLocal)
		}
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("registry: duplicate provider %q", name)
		}
		byName[name] = p
		list = append(list, p)
	}

	return &Registry{local: local, providers: list, byName: byName}, nil
}

// Local returns the local catalog adapter.
func (r *Registry) Local() LocalAdapter { return r.local }

// Providers returns the providers in registration order. The returned slice
// is a copy.
func (r *Registry) Providers() []Adapter {
	out := make([]Adapter, len(r.providers))
	copy(out, r.providers)
	return out
}

// Provider looks a provider up by name.
func (r *Registry) Provider(name string) (Adapter, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Names lists every registered source, local first.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers)+1)
	names = append(names, r.local.Name())
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

package module

import (
	"github.com/pkg/errors"

	"github.com/kubestrap/kubestrap/pkg/health"
)

// Registry holds the closed set of module declarations for a run. Malformed
// declarations are rejected here, once, at startup; the engine never sees
// them.
type Registry struct {
	modules map[string]*Module
	order   []string
}

// NewRegistry validates the declarations and returns a registry preserving
// declaration order (the "full install" order).
func NewRegistry(modules ...*Module) (*Registry, error) {
	r := &Registry{modules: make(map[string]*Module, len(modules))}
	for _, m := range modules {
		if m == nil {
			return nil, errors.New("nil module declaration")
		}
		if m.Name == "" {
			return nil, errors.New("module with empty name")
		}
		if _, dup := r.modules[m.Name]; dup {
			return nil, errors.Errorf("duplicate module %q", m.Name)
		}
		if len(m.Steps) == 0 {
			return nil, errors.Errorf("module %q declares no steps", m.Name)
		}
		for i, s := range m.Steps {
			if len(s.Argv) == 0 {
				return nil, errors.Errorf("module %q step %d has an empty command", m.Name, i)
			}
		}
		if m.Health != nil {
			if !health.KnownKind(m.Health.Kind) {
				return nil, errors.Errorf("module %q: unknown health check kind %q", m.Name, m.Health.Kind)
			}
			if m.Health.Target == "" {
				return nil, errors.Errorf("module %q: health check has no target", m.Name)
			}
		}
		r.modules[m.Name] = m
		r.order = append(r.order, m.Name)
	}
	return r, nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (*Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// Names returns module names in declaration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Dependencies returns the name→dependency-set mapping the dependency graph
// is built from.
func (r *Registry) Dependencies() map[string][]string {
	deps := make(map[string][]string, len(r.modules))
	for name, m := range r.modules {
		deps[name] = append([]string(nil), m.Dependencies...)
	}
	return deps
}

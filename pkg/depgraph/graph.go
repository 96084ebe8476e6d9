// Package depgraph holds the static module dependency graph. The graph is
// built once at startup from the module declarations and is read-only during
// execution; cycles and dangling references are configuration errors, not
// runtime failures.
package depgraph

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/kubestrap/kubestrap/pkg/state"
)

// Graph maps each module name to the set of modules that must be complete
// before it may run.
type Graph struct {
	deps map[string][]string
}

// New validates the declarations and builds the graph. It fails on a
// dependency naming an unknown module and on any cycle.
func New(deps map[string][]string) (*Graph, error) {
	for name, reqs := range deps {
		for _, req := range reqs {
			if _, ok := deps[req]; !ok {
				return nil, errors.Errorf("module %q depends on unknown module %q", name, req)
			}
			if req == name {
				return nil, errors.Errorf("module %q depends on itself", name)
			}
		}
	}
	if cycle := findCycle(deps); len(cycle) > 0 {
		return nil, errors.Errorf("dependency cycle detected: %v", cycle)
	}

	g := &Graph{deps: make(map[string][]string, len(deps))}
	for name, reqs := range deps {
		sorted := append([]string(nil), reqs...)
		sort.Strings(sorted)
		g.deps[name] = sorted
	}
	return g, nil
}

// Known reports whether the module is declared in the graph.
func (g *Graph) Known(name string) bool {
	_, ok := g.deps[name]
	return ok
}

// DependenciesOf returns the declared dependency set of a module.
func (g *Graph) DependenciesOf(name string) []string {
	return append([]string(nil), g.deps[name]...)
}

// Validate checks the requested module's dependencies against the state
// store. It returns ok=false with the complete missing set, not just the
// first gap, so the caller can report the full remediation list at once.
func (g *Graph) Validate(name string, store state.Store) (bool, []string, error) {
	reqs, ok := g.deps[name]
	if !ok {
		return false, nil, errors.Errorf("unknown module %q", name)
	}
	var missing []string
	for _, req := range reqs {
		done, err := store.IsComplete(req)
		if err != nil {
			return false, nil, errors.Wrapf(err, "checking completion of dependency %q", req)
		}
		if !done {
			missing = append(missing, req)
		}
	}
	return len(missing) == 0, missing, nil
}

// findCycle runs a DFS with the classic white/grey/black coloring and
// returns one cycle path if any exists.
func findCycle(deps map[string][]string) []string {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int, len(deps))

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	var stack []string
	var cycle []string

	var visit func(string) bool
	visit = func(n string) bool {
		color[n] = grey
		stack = append(stack, n)
		for _, next := range deps[n] {
			switch color[next] {
			case grey:
				// Found the back edge; slice the stack from the first
				// occurrence of next to report the actual loop.
				for i, s := range stack {
					if s == next {
						cycle = append(append([]string(nil), stack[i:]...), next)
						return true
					}
				}
			case white:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return false
	}

	for _, name := range names {
		if color[name] == white && visit(name) {
			return cycle
		}
	}
	return nil
}

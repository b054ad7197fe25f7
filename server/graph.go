package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/frievoe97/stackup/spec"
)

// GraphErrorKind classifies construction-time failures. All of them are
// fatal: no service starts when graph construction fails.
type GraphErrorKind string

const (
	ErrInvalidSpec       GraphErrorKind = "invalid_spec"
	ErrDuplicateName     GraphErrorKind = "duplicate_name"
	ErrUnknownDependency GraphErrorKind = "unknown_dependency"
	ErrCycleDetected     GraphErrorKind = "cycle_detected"
	ErrMissingEnv        GraphErrorKind = "missing_env"
)

// GraphError is returned by BuildGraph when the stack spec is unusable.
type GraphError struct {
	Kind GraphErrorKind
	msg  string
}

func (e *GraphError) Error() string { return e.msg }

// graphErrorf builds a GraphError with a formatted message.
func graphErrorf(kind GraphErrorKind, format string, args ...any) *GraphError {
	return &GraphError{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Graph is the validated, immutable form of a stack: every dependency
// reference resolves, the dependency relation is acyclic, and every
// environment value is fully interpolated.
type Graph struct {
	Stack *spec.Stack

	// Order is a dependency-first topological ordering of service names.
	// Ties among services with no ordering constraint are broken
	// lexicographically so the order is deterministic, but callers must
	// not rely on the relative position of independent services.
	Order []string

	// Env holds the interpolated environment map per service.
	Env map[string]map[string]string

	deps       map[string][]string
	dependents map[string][]string
}

// Names returns all service names, sorted.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.Stack.Services))
	for name := range g.Stack.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Deps returns the direct dependencies of a service, sorted.
func (g *Graph) Deps(name string) []string { return g.deps[name] }

// Dependents returns the services that directly depend on name, sorted.
func (g *Graph) Dependents(name string) []string { return g.dependents[name] }

// DecodeAndBuild decodes a JSON stack spec and builds its graph, folding
// decode-time duplicate-name detection into the GraphError taxonomy.
func DecodeAndBuild(data []byte, lookup spec.Lookup) (*Graph, error) {
	st, err := spec.DecodeStack(data)
	if err != nil {
		var dup *spec.DuplicateKeyError
		if errors.As(err, &dup) {
			return nil, graphErrorf(ErrDuplicateName, "%s", dup.Error())
		}
		return nil, err
	}
	return BuildGraph(st, lookup)
}

// BuildGraph validates a stack and computes its topological order.
// Environment values and health-check endpoints (address, path, dsn) are
// interpolated against lookup (nil means the process environment); any
// reference to an unset variable without a default fails construction with
// ErrMissingEnv — values are never silently emptied.
func BuildGraph(st *spec.Stack, lookup spec.Lookup) (*Graph, error) {
	if lookup == nil {
		lookup = spec.OSLookup
	}
	if st.Name == "" {
		return nil, graphErrorf(ErrInvalidSpec, "stack name is required")
	}
	if len(st.Services) == 0 {
		return nil, graphErrorf(ErrInvalidSpec, "stack %q has no services", st.Name)
	}

	names := make([]string, 0, len(st.Services))
	for name := range st.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	g := &Graph{
		Stack:      st,
		Env:        make(map[string]map[string]string, len(names)),
		deps:       make(map[string][]string, len(names)),
		dependents: make(map[string][]string, len(names)),
	}

	var missing []string
	for _, name := range names {
		svc := st.Services[name]

		for _, dep := range svc.DependsOn {
			if dep == name {
				return nil, graphErrorf(ErrCycleDetected, "service %q depends on itself", name)
			}
			if _, ok := st.Services[dep]; !ok {
				msg := fmt.Sprintf("service %q depends on unknown service %q", name, dep)
				if suggestion := closestMatch(dep, names); suggestion != "" {
					msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
				}
				return nil, graphErrorf(ErrUnknownDependency, "%s", msg)
			}
		}
		g.deps[name] = dedupeSorted(svc.DependsOn)

		env, miss := spec.ExpandEnvironment(svc.Environment, lookup)
		g.Env[name] = env
		missing = append(missing, miss...)

		// Health-check endpoints reference host variables the same way
		// environment values do — a DSN embedding a secret, typically.
		if svc.Health != nil {
			hc := *svc.Health
			for _, field := range []*string{&hc.Address, &hc.Path, &hc.DSN} {
				expanded, miss := spec.Expand(*field, lookup)
				*field = expanded
				missing = append(missing, miss...)
			}
			svc.Health = &hc
			st.Services[name] = svc
		}
	}

	if len(missing) > 0 {
		missing = dedupeSorted(missing)
		return nil, graphErrorf(ErrMissingEnv,
			"unset environment variable(s): %s (use ${VAR:-default} for optional values)",
			strings.Join(missing, ", "))
	}

	for _, name := range names {
		for _, dep := range g.deps[name] {
			g.dependents[dep] = append(g.dependents[dep], name)
		}
	}
	for _, deps := range g.dependents {
		sort.Strings(deps)
	}

	order, ok := topoOrder(names, g.deps)
	if !ok {
		return nil, graphErrorf(ErrCycleDetected, "dependency cycle: %s", findCycle(names, g.deps))
	}
	g.Order = order

	return g, nil
}

// topoOrder runs Kahn's algorithm over the dependency edges. The returned
// order is dependency-first. ok is false when nodes remain unvisited,
// which means the graph has a cycle.
func topoOrder(names []string, deps map[string][]string) (order []string, ok bool) {
	indeg := make(map[string]int, len(names))
	for _, name := range names {
		indeg[name] = len(deps[name])
	}

	var ready []string
	for _, name := range names { // names already sorted
		if indeg[name] == 0 {
			ready = append(ready, name)
		}
	}

	dependents := make(map[string][]string, len(names))
	for _, name := range names {
		for _, dep := range deps[name] {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	for len(ready) > 0 {
		sort.Strings(ready)
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		for _, m := range dependents[n] {
			indeg[m]--
			if indeg[m] == 0 {
				ready = append(ready, m)
			}
		}
	}

	return order, len(order) == len(names)
}

// findCycle walks the dependency graph with DFS and returns one cycle as a
// readable path. Only called after topoOrder has proven a cycle exists.
func findCycle(names []string, deps map[string][]string) string {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make(map[string]int, len(names))
	parent := make(map[string]string, len(names))

	var dfs func(name string) string
	dfs = func(name string) string {
		state[name] = visiting

		for _, dep := range deps[name] {
			switch state[dep] {
			case visiting:
				// Found a cycle — build the path back to dep.
				path := []string{dep, name}
				for cur := name; cur != dep; {
					cur = parent[cur]
					path = append(path, cur)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return strings.Join(path, " → ")
			case unvisited:
				parent[dep] = name
				if msg := dfs(dep); msg != "" {
					return msg
				}
			}
		}

		state[name] = visited
		return ""
	}

	for _, name := range names {
		if state[name] == unvisited {
			if msg := dfs(name); msg != "" {
				return msg
			}
		}
	}
	return "unknown"
}

// closestMatch returns the service name closest to target using simple
// edit distance, or "" if no name is close enough.
func closestMatch(target string, names []string) string {
	best := ""
	bestDist := len(target)/2 + 1 // threshold: must be within half the length

	for _, name := range names {
		d := editDistance(target, name)
		if d < bestDist {
			bestDist = d
			best = name
		}
	}
	return best
}

func editDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, min(prev[j]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func dedupeSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	j := 0
	for i := 1; i < len(out); i++ {
		if out[i] != out[j] {
			j++
			out[j] = out[i]
		}
	}
	return out[:j+1]
}

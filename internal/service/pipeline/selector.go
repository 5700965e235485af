package pipeline

import (
	"strings"

	"duckstack/internal/domain"
)

// Select filters transformation outputs with a selector string and returns
// them in topological order.
// Supported syntax:
//   - "" or "*"      every transformation
//   - "name"         a single transformation output
//   - "name+"        name and everything downstream of it
//   - "+name"        name and everything upstream of it
//   - "+name+"       upstream + name + downstream
//
// name may be a source; only transformation outputs are returned, so
// "raw_sales+" selects every transformation fed by raw_sales.
func Select(spec *Specification, selector string) ([]string, error) {
	g := spec.BuildDependencyGraph()

	selector = strings.TrimSpace(selector)
	if selector == "" || selector == "*" {
		return g.TopologicalOrder(spec.OutputNames()...)
	}

	upstream := strings.HasPrefix(selector, "+")
	downstream := strings.HasSuffix(selector, "+")
	name := strings.Trim(selector, "+")
	if name == "" {
		return nil, domain.ErrValidation("selector %q has no artifact name", selector)
	}
	if !g.HasNode(name) {
		return nil, domain.ErrNotFound("artifact %q not found", name)
	}

	selected := map[string]bool{name: true}
	if upstream {
		for _, n := range g.Ancestors(name) {
			selected[n] = true
		}
	}
	if downstream {
		for _, n := range g.Descendants(name) {
			selected[n] = true
		}
	}

	var outputs []string
	for _, out := range spec.OutputNames() {
		if selected[out] {
			outputs = append(outputs, out)
			delete(selected, out) // duplicate outputs are ordered once
		}
	}
	if len(outputs) == 0 {
		return nil, nil
	}
	return g.TopologicalOrder(outputs...)
}

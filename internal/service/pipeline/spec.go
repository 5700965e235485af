// Package pipeline holds the immutable pipeline specification, the
// validator that checks it, and graph selectors over it.
package pipeline

import (
	"duckstack/internal/domain"
	"duckstack/internal/graph"
)

// Specification is an immutable declarative description of sources,
// transformations, and the serving layer. Construct it with NewSpecification;
// a configuration update produces a new Specification rather than mutating
// an existing one.
type Specification struct {
	sources         []domain.Source
	transformations []domain.Transformation
	serving         domain.ServingLayer
}

// NewSpecification copies its inputs so later edits by the caller cannot
// alter the specification.
func NewSpecification(sources []domain.Source, transformations []domain.Transformation, serving domain.ServingLayer) *Specification {
	s := &Specification{
		sources:         make([]domain.Source, len(sources)),
		transformations: make([]domain.Transformation, len(transformations)),
		serving:         serving.Clone(),
	}
	for i, src := range sources {
		s.sources[i] = src.Clone()
	}
	for i, t := range transformations {
		s.transformations[i] = t.Clone()
	}
	return s
}

// Sources returns a copy of the declared sources.
func (s *Specification) Sources() []domain.Source {
	out := make([]domain.Source, len(s.sources))
	for i, src := range s.sources {
		out[i] = src.Clone()
	}
	return out
}

// Transformations returns a copy of the declared transformations.
func (s *Specification) Transformations() []domain.Transformation {
	out := make([]domain.Transformation, len(s.transformations))
	for i, t := range s.transformations {
		out[i] = t.Clone()
	}
	return out
}

// Serving returns a copy of the serving layer.
func (s *Specification) Serving() domain.ServingLayer {
	return s.serving.Clone()
}

// Source looks up a source by name.
func (s *Specification) Source(name string) (domain.Source, bool) {
	for _, src := range s.sources {
		if src.Name == name {
			return src.Clone(), true
		}
	}
	return domain.Source{}, false
}

// Transformation looks up the first transformation producing output.
func (s *Specification) Transformation(output string) (domain.Transformation, bool) {
	for _, t := range s.transformations {
		if t.Output == output {
			return t.Clone(), true
		}
	}
	return domain.Transformation{}, false
}

// Kind reports the role of an artifact name.
func (s *Specification) Kind(name string) domain.ArtifactKind {
	if _, ok := s.Source(name); ok {
		return domain.ArtifactSource
	}
	if _, ok := s.Transformation(name); ok {
		return domain.ArtifactTransformation
	}
	return domain.ArtifactUnknown
}

// SourceNames returns source names in declaration order.
func (s *Specification) SourceNames() []string {
	names := make([]string, len(s.sources))
	for i, src := range s.sources {
		names[i] = src.Name
	}
	return names
}

// OutputNames returns transformation output names in declaration order.
func (s *Specification) OutputNames() []string {
	names := make([]string, len(s.transformations))
	for i, t := range s.transformations {
		names[i] = t.Output
	}
	return names
}

// AvailableNames returns the deduplicated union of source and output names,
// sources first, in declaration order.
func (s *Specification) AvailableNames() []string {
	seen := make(map[string]bool, len(s.sources)+len(s.transformations))
	var names []string
	for _, n := range append(s.SourceNames(), s.OutputNames()...) {
		if seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	return names
}

// BuildDependencyGraph derives a fresh graph: every source and output becomes
// a node in declaration order, then each transformation contributes one edge
// per declared input. Nothing is cached on the specification.
func (s *Specification) BuildDependencyGraph() *graph.Graph {
	g := graph.New()
	for _, src := range s.sources {
		g.AddNode(src.Name)
	}
	for _, t := range s.transformations {
		g.AddNode(t.Output)
	}
	for _, t := range s.transformations {
		for _, in := range t.Inputs {
			g.AddDependency(in, t.Output)
		}
	}
	return g
}

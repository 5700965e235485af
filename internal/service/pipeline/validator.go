package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"duckstack/internal/domain"
	"duckstack/internal/graph"
)

// ViolationKind classifies a validation problem.
type ViolationKind string

// Violation kinds, reported in this order within a result.
const (
	KindCyclicDependency        ViolationKind = "CyclicDependency"
	KindInvalidDefinition       ViolationKind = "InvalidDefinition"
	KindDuplicateSource         ViolationKind = "DuplicateSource"
	KindDuplicateOutput         ViolationKind = "DuplicateOutput"
	KindUnknownInput            ViolationKind = "UnknownInput"
	KindUnknownServingReference ViolationKind = "UnknownServingReference"
)

// Violation is a single validation problem.
type Violation struct {
	Kind    ViolationKind
	Subject string   // the offending artifact or identifier name
	Nodes   []string // cycle participants for CyclicDependency
	Message string
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Kind, v.Message)
}

// ValidationResult is the complete, ordered list of violations found in one pass.
type ValidationResult struct {
	Violations []Violation
}

// OK reports whether the specification has no violations.
func (r *ValidationResult) OK() bool { return len(r.Violations) == 0 }

// ByKind returns the violations of one kind.
func (r *ValidationResult) ByKind(kind ViolationKind) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Kind == kind {
			out = append(out, v)
		}
	}
	return out
}

// Strings renders every violation verbatim.
func (r *ValidationResult) Strings() []string {
	out := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		out[i] = v.Error()
	}
	return out
}

// Err returns nil for a valid result, otherwise a *domain.PipelineInvalidError
// carrying every violation.
func (r *ValidationResult) Err() error {
	if r.OK() {
		return nil
	}
	return &domain.PipelineInvalidError{Violations: r.Strings()}
}

// ErrNilSpecification is returned when Validate is called without a specification.
var ErrNilSpecification = errors.New("nil pipeline specification")

// Validate checks spec for cycles, duplicate and unknown names, and serving
// queries that reference missing tables. It collects every violation rather
// than stopping at the first. Expected violations are returned as data; the
// error return is reserved for programmer errors such as a nil spec.
func Validate(spec *Specification) (*ValidationResult, error) {
	if spec == nil {
		return nil, ErrNilSpecification
	}

	result := &ValidationResult{}
	add := func(v Violation) { result.Violations = append(result.Violations, v) }

	// 1. Cycles. One violation per specification naming one cycle.
	g := spec.BuildDependencyGraph()
	if cycle := g.FindCycle(); cycle != nil {
		add(Violation{
			Kind:    KindCyclicDependency,
			Subject: cycle[0],
			Nodes:   cycle,
			Message: (&graph.CyclicDependencyError{Cycle: cycle}).Error(),
		})
	}

	// 2. Names: required, unique per role, never shared between roles.
	validateNames(spec, add)

	available := make(map[string]bool)
	for _, n := range spec.AvailableNames() {
		available[n] = true
	}

	// 3. Transformation inputs must resolve.
	for _, t := range spec.transformations {
		for _, in := range t.Inputs {
			if !available[in] {
				add(Violation{
					Kind:    KindUnknownInput,
					Subject: in,
					Message: fmt.Sprintf("transformation %q: input %q is neither a source nor a transformation output", t.Name, in),
				})
			}
		}
	}

	// 4. Serving queries may only read available artifacts. The engine
	// resolves identifiers case-insensitively, so this check does too.
	folded := make(map[string]bool, len(available))
	for n := range available {
		folded[strings.ToLower(n)] = true
	}
	for _, d := range spec.serving.Dashboards {
		for _, m := range d.Metrics {
			checkServingQuery(folded, d.Name, "metric", m.Name, m.Query, add)
		}
		for _, c := range d.Charts {
			checkServingQuery(folded, d.Name, "chart", c.Name, c.Query, add)
		}
	}

	return result, nil
}

func validateNames(spec *Specification, add func(Violation)) {
	sourceSeen := make(map[string]bool, len(spec.sources))
	for i, src := range spec.sources {
		if strings.TrimSpace(src.Name) == "" {
			add(Violation{
				Kind:    KindInvalidDefinition,
				Message: fmt.Sprintf("source[%d]: name is required", i),
			})
			continue
		}
		if sourceSeen[src.Name] {
			add(Violation{
				Kind:    KindDuplicateSource,
				Subject: src.Name,
				Message: fmt.Sprintf("source %q is declared more than once", src.Name),
			})
			continue
		}
		sourceSeen[src.Name] = true
	}

	producers := make(map[string][]string)
	var order []string
	for i, t := range spec.transformations {
		label := t.Name
		if strings.TrimSpace(label) == "" {
			add(Violation{
				Kind:    KindInvalidDefinition,
				Message: fmt.Sprintf("transformation[%d]: name is required", i),
			})
			label = fmt.Sprintf("transformation[%d]", i)
		}
		if strings.TrimSpace(t.Output) == "" {
			add(Violation{
				Kind:    KindInvalidDefinition,
				Subject: t.Name,
				Message: fmt.Sprintf("transformation %q: output is required", label),
			})
			continue
		}
		if _, ok := producers[t.Output]; !ok {
			order = append(order, t.Output)
		}
		producers[t.Output] = append(producers[t.Output], label)
	}

	for _, out := range order {
		names := producers[out]
		if len(names) > 1 {
			add(Violation{
				Kind:    KindDuplicateOutput,
				Subject: out,
				Message: fmt.Sprintf("output %q is produced by %d transformations: %s",
					out, len(names), strings.Join(names, ", ")),
			})
		}
		if sourceSeen[out] {
			add(Violation{
				Kind:    KindDuplicateOutput,
				Subject: out,
				Message: fmt.Sprintf("output %q of transformation %q collides with a source of the same name", out, names[0]),
			})
		}
	}
}

func checkServingQuery(available map[string]bool, dashboard, kind, name, query string, add func(Violation)) {
	for _, ref := range ExtractTableReferences(query) {
		if resolves(available, ref) {
			continue
		}
		add(Violation{
			Kind:    KindUnknownServingReference,
			Subject: ref,
			Message: fmt.Sprintf("dashboard %q %s %q references unknown table %q", dashboard, kind, name, ref),
		})
	}
}

// resolves reports whether ref, or the last segment of a qualified ref, is in
// the lower-cased available set.
func resolves(available map[string]bool, ref string) bool {
	ref = strings.ToLower(ref)
	if available[ref] {
		return true
	}
	if i := strings.LastIndexByte(ref, '.'); i >= 0 {
		return available[ref[i+1:]]
	}
	return false
}

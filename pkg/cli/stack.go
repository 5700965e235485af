package cli

import (
	"fmt"
	"io"

	"duckstack/internal/declarative"
	"duckstack/internal/service/pipeline"
)

// loadedStack is a stack read from disk together with every problem found
// in it.
type loadedStack struct {
	state      *declarative.DesiredState
	spec       *pipeline.Specification
	structural []declarative.ValidationError
	result     *pipeline.ValidationResult
}

// ok reports whether the stack has neither structural errors nor violations.
func (s *loadedStack) ok() bool {
	return len(s.structural) == 0 && s.result.OK()
}

// problems returns every problem as a printable line, structural errors first.
func (s *loadedStack) problems() []string {
	out := make([]string, 0, len(s.structural)+len(s.result.Violations))
	for _, e := range s.structural {
		out = append(out, e.Error())
	}
	return append(out, s.result.Strings()...)
}

// loadStack reads the configured stack and validates it. Only load errors are
// returned as an error; problems in the definition are data.
func (a *app) loadStack(allowUnknownFields bool) (*loadedStack, error) {
	state, err := declarative.LoadWithOptions(a.cfg.StackPath, declarative.LoadOptions{
		AllowUnknownFields: allowUnknownFields,
	})
	if err != nil {
		return nil, fmt.Errorf("load stack: %w", err)
	}
	spec := declarative.ToSpecification(state)
	result, err := pipeline.Validate(spec)
	if err != nil {
		return nil, err
	}
	return &loadedStack{
		state:      state,
		spec:       spec,
		structural: declarative.Validate(state),
		result:     result,
	}, nil
}

// reportProblems prints the stack's problems and returns an exitError so the
// caller exits with status 1.
func (a *app) reportProblems(w io.Writer, s *loadedStack) error {
	problems := s.problems()
	fmt.Fprintf(w, "Stack has %d problem(s):\n", len(problems))
	for _, p := range problems {
		fmt.Fprintf(w, "  - %s\n", p)
	}
	return &exitError{code: 1}
}

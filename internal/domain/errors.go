// Package domain defines core types, collaborator ports, and errors for the
// declarative analytics stack.
package domain

import (
	"fmt"
	"strings"
)

// NotFoundError indicates a named artifact or resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., a driver reused for a second run).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// PipelineInvalidError is returned by a run that stopped during validation.
// Violations holds the complete, ordered defect list as rendered strings.
type PipelineInvalidError struct {
	Violations []string
}

func (e *PipelineInvalidError) Error() string {
	if len(e.Violations) == 1 {
		return "pipeline is invalid: " + e.Violations[0]
	}
	return fmt.Sprintf("pipeline is invalid: %d violations: %s",
		len(e.Violations), strings.Join(e.Violations, "; "))
}

// TransformationError reports a fail-fast halt while executing transformations.
type TransformationError struct {
	Transformation string   // output name of the failed transformation
	Completed      []string // outputs produced before the failure
	NotRun         []string // outputs never attempted, including the failed one
	Err            error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("transformation %q failed (%d completed, %d not run): %v",
		e.Transformation, len(e.Completed), len(e.NotRun), e.Err)
}

func (e *TransformationError) Unwrap() error { return e.Err }

// Collaborator names used in CollaboratorError.
const (
	CollaboratorIngestion = "ingestion"
	CollaboratorRendering = "rendering"
)

// CollaboratorError reports a boundary failure of the ingestion or rendering
// collaborator. The run fails; no retry happens inside the core.
type CollaboratorError struct {
	Collaborator string
	Artifact     string // empty when the failure is not tied to one artifact
	Err          error
}

func (e *CollaboratorError) Error() string {
	if e.Artifact != "" {
		return fmt.Sprintf("%s collaborator unavailable for %q: %v", e.Collaborator, e.Artifact, e.Err)
	}
	return fmt.Sprintf("%s collaborator unavailable: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// InvariantViolationError is a programmer-error class: the graph changed
// between validation and execution.
type InvariantViolationError struct {
	Message string
	Err     error
}

func (e *InvariantViolationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invariant violation: %s: %v", e.Message, e.Err)
	}
	return "invariant violation: " + e.Message
}

func (e *InvariantViolationError) Unwrap() error { return e.Err }

// Package testutil provides shared mock implementations of the collaborator
// ports for use in tests across the codebase. This follows the Go convention
// of a shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"sync"

	"duckstack/internal/domain"
)

// === Ingestion Mock ===

// MockIngestor implements domain.Ingestor for testing. Calls are recorded
// and safe for concurrent use, since the driver materializes sources in
// parallel.
type MockIngestor struct {
	MaterializeFn func(ctx context.Context, source domain.Source) error

	mu    sync.Mutex
	calls []string
}

// Materialize implements the interface method for testing.
func (m *MockIngestor) Materialize(ctx context.Context, source domain.Source) error {
	m.mu.Lock()
	m.calls = append(m.calls, source.Name)
	m.mu.Unlock()
	if m.MaterializeFn != nil {
		return m.MaterializeFn(ctx, source)
	}
	return nil
}

// Calls returns the materialized source names in call order.
func (m *MockIngestor) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// === Execution Mock ===

// MockExecutor implements domain.TransformExecutor for testing.
type MockExecutor struct {
	ExecuteFn func(ctx context.Context, t domain.Transformation) error
	Calls     []string // executed outputs, in order
}

// Execute implements the interface method for testing.
func (m *MockExecutor) Execute(ctx context.Context, t domain.Transformation) error {
	m.Calls = append(m.Calls, t.Output)
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, t)
	}
	return nil
}

// FailOn returns an ExecuteFn that fails for output name with err.
func FailOn(name string, err error) func(context.Context, domain.Transformation) error {
	return func(_ context.Context, t domain.Transformation) error {
		if t.Output == name {
			return err
		}
		return nil
	}
}

// === Rendering Mock ===

// MockRenderer implements domain.Renderer for testing.
type MockRenderer struct {
	RenderFn  func(ctx context.Context, serving domain.ServingLayer, available []string) error
	Rendered  int
	Available []string // available names from the last call
}

// Render implements the interface method for testing.
func (m *MockRenderer) Render(ctx context.Context, serving domain.ServingLayer, available []string) error {
	m.Rendered++
	m.Available = append([]string(nil), available...)
	if m.RenderFn != nil {
		return m.RenderFn(ctx, serving, available)
	}
	return nil
}

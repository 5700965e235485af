package domain

import "context"

// Ingestor materializes a declared source. Called once per source per run.
type Ingestor interface {
	Materialize(ctx context.Context, source Source) error
}

// TransformExecutor produces a transformation's output from its inputs.
// The ordered inputs travel in t.Inputs.
type TransformExecutor interface {
	Execute(ctx context.Context, t Transformation) error
}

// Renderer hands the serving layer to the presentation side once every
// transformation has succeeded.
type Renderer interface {
	Render(ctx context.Context, serving ServingLayer, available []string) error
}

package translate

import (
	"context"
)

// Backend defines the interface for inference backends that turn a model
// identifier into a ready translation pipeline.
// This abstraction allows us to switch between different inference runtimes
// (HuggingFace HTTP, a local transformers process, etc.) without changing the engine.
type Backend interface {
	// Load constructs a pipeline for modelID on the given device.
	// It fails if the identifier does not resolve to a loadable model.
	Load(ctx context.Context, modelID, device string) (Pipeline, error)

	// CheckHealth verifies that the backend is ready and operational.
	CheckHealth(ctx context.Context) error
}

// Pipeline is a loaded, ready-to-invoke translation model.
type Pipeline interface {
	// Translate translates text, limiting the output to maxLength tokens.
	Translate(ctx context.Context, text string, maxLength int) (string, error)
}

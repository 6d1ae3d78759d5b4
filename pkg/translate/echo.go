package translate

import (
	"context"
	"fmt"
	"strings"
)

// EchoBackend is an in-process backend that "translates" by tagging the input
// with the target language. It is useful for local development and smoke tests.
type EchoBackend struct {
	models map[string]bool
}

// NewEchoBackend creates an echo backend. If models is empty every identifier
// loads; otherwise only the listed identifiers do.
func NewEchoBackend(models ...string) *EchoBackend {
	b := &EchoBackend{}
	if len(models) > 0 {
		b.models = make(map[string]bool, len(models))
		for _, m := range models {
			b.models[m] = true
		}
	}
	return b
}

// Load implements Backend.
func (b *EchoBackend) Load(_ context.Context, modelID, _ string) (Pipeline, error) {
	if b.models != nil && !b.models[modelID] {
		return nil, fmt.Errorf("%s is not a valid model identifier", modelID)
	}
	target := modelID
	if idx := strings.LastIndex(modelID, "-"); idx >= 0 {
		target = modelID[idx+1:]
	}
	return echoPipeline{target: target}, nil
}

// CheckHealth implements Backend.
func (b *EchoBackend) CheckHealth(context.Context) error { return nil }

type echoPipeline struct {
	target string
}

func (p echoPipeline) Translate(ctx context.Context, text string, _ int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("[%s] %s", p.target, text), nil
}

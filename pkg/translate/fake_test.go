package translate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeBackend loads only the identifiers in available and counts every load.
type fakeBackend struct {
	mu        sync.Mutex
	available map[string]bool
	loads     []string
	devices   []string
	loadGate  chan struct{}
	failChunk int32 // 1-based call number that fails, 0 = never
	calls     atomic.Int32
}

func newFakeBackend(models ...string) *fakeBackend {
	b := &fakeBackend{available: make(map[string]bool)}
	for _, m := range models {
		b.available[m] = true
	}
	return b
}

func (b *fakeBackend) Load(ctx context.Context, modelID, device string) (Pipeline, error) {
	if b.loadGate != nil {
		<-b.loadGate
	}
	b.mu.Lock()
	b.loads = append(b.loads, modelID)
	b.devices = append(b.devices, device)
	ok := b.available[modelID]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s is not a valid model identifier", modelID)
	}
	return &fakePipeline{backend: b, modelID: modelID}, nil
}

func (b *fakeBackend) CheckHealth(context.Context) error { return nil }

func (b *fakeBackend) loadCalls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.loads))
	copy(out, b.loads)
	return out
}

type fakePipeline struct {
	backend *fakeBackend
	modelID string
	closed  atomic.Bool
}

func (p *fakePipeline) Translate(_ context.Context, text string, _ int) (string, error) {
	n := p.backend.calls.Add(1)
	if p.backend.failChunk != 0 && n == p.backend.failChunk {
		return "", errors.New("CUDA out of memory")
	}
	return fmt.Sprintf("<%d:%d>", n, len([]rune(text))), nil
}

func (p *fakePipeline) Close() error {
	p.closed.Store(true)
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/neurotranslate/pkg/language"
	"github.com/dasmlab/neurotranslate/pkg/translate"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// stubBackend loads only the listed model identifiers.
type stubBackend struct {
	mu        sync.Mutex
	available map[string]bool
	loads     []string
	failWith  string
	delay     time.Duration
	block     chan struct{}
}

func newStubBackend(models ...string) *stubBackend {
	b := &stubBackend{available: make(map[string]bool)}
	for _, m := range models {
		b.available[m] = true
	}
	return b
}

func (b *stubBackend) Load(ctx context.Context, modelID, _ string) (translate.Pipeline, error) {
	if b.block != nil {
		select {
		case <-b.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loads = append(b.loads, modelID)
	if !b.available[modelID] {
		return nil, fmt.Errorf("%s is not a valid model identifier", modelID)
	}
	target := modelID[strings.LastIndex(modelID, "-")+1:]
	return stubPipeline{target: target, failWith: b.failWith, delay: b.delay}, nil
}

func (b *stubBackend) CheckHealth(context.Context) error { return nil }

func (b *stubBackend) loadCalls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.loads...)
}

type stubPipeline struct {
	target   string
	failWith string
	delay    time.Duration
}

func (p stubPipeline) Translate(ctx context.Context, text string, _ int) (string, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if p.failWith != "" {
		return "", errors.New(p.failWith)
	}
	return fmt.Sprintf("[%s:%d]", p.target, len([]rune(text))), nil
}

// stubDetector returns a fixed code and counts calls.
type stubDetector struct {
	code  string
	calls atomic.Int32
}

func (d *stubDetector) Detect(string) string {
	d.calls.Add(1)
	return d.code
}

func newTestOrchestrator(t *testing.T, backend translate.Backend, detector Detector) *Orchestrator {
	t.Helper()
	engine, err := translate.NewEngine(backend, translate.EngineConfig{
		Name:   "test",
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	if detector == nil {
		detector = &stubDetector{code: language.Unknown}
	}
	return NewOrchestrator(engine, detector, language.DefaultCatalog(), 0, quietLogger())
}

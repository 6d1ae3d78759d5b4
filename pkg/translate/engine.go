package translate

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	// ChunkSize is the number of characters (code points) per chunk.
	// Chunks are cut at fixed offsets and may split words or sentences.
	ChunkSize = 1024
	// ChunkSeparator joins translated chunks.
	ChunkSeparator = "\n"
	// DefaultMaxLength is the default output length limit passed to the model.
	DefaultMaxLength = 1024
	// DefaultDevice is used when no compute device is configured.
	DefaultDevice = "cpu"
)

// ProgressFunc is called after each translated chunk.
type ProgressFunc func(done, total int)

// EngineConfig holds configuration for an Engine.
type EngineConfig struct {
	// Name labels metrics; usually the backend engine type.
	Name string
	// Device is the compute device handed to the backend on every load.
	Device string
	// ModelPrefix overrides DefaultModelPrefix.
	ModelPrefix string
	// CachePolicy is CachePolicyLRU (default) or CachePolicyUnbounded.
	CachePolicy string
	// CacheSize bounds the LRU cache.
	CacheSize int
	// MaxLength is the output length limit used by TranslateChunked.
	MaxLength int
	// Logger is the logger instance to use. If nil, a default logger is created.
	Logger *logrus.Logger
}

// Engine owns the model cache and runs translations on cached handles.
type Engine struct {
	resolver  *Resolver
	cache     ModelCache
	loads     singleflight.Group
	metrics   *MetricsCollector
	maxLength int
	logger    *logrus.Logger
}

// NewEngine creates an engine over backend.
func NewEngine(backend Backend, cfg EngineConfig) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Device == "" {
		cfg.Device = DefaultDevice
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}

	e := &Engine{
		resolver:  NewResolver(backend, cfg.ModelPrefix, cfg.Device, cfg.Logger),
		metrics:   NewMetricsCollector(cfg.Name),
		maxLength: cfg.MaxLength,
		logger:    cfg.Logger,
	}

	cache, err := NewModelCache(cfg.CachePolicy, cfg.CacheSize, e.evicted)
	if err != nil {
		return nil, err
	}
	e.cache = cache

	cfg.Logger.WithFields(logrus.Fields{
		"engine":       cfg.Name,
		"device":       cfg.Device,
		"cache_policy": cfg.CachePolicy,
		"cache_size":   cfg.CacheSize,
		"max_length":   cfg.MaxLength,
	}).Info("Translation engine created")

	return e, nil
}

// Resolver exposes the engine's model resolver.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// MaxLength returns the configured output length limit.
func (e *Engine) MaxLength() int { return e.maxLength }

// CachedModels returns the number of cached handles.
func (e *Engine) CachedModels() int { return e.cache.Len() }

func (e *Engine) evicted(key ModelKey, h *Handle) {
	e.metrics.RecordCacheEviction()
	e.logger.WithFields(logrus.Fields{
		"key":      key.String(),
		"model_id": h.ModelID(),
	}).Info("Evicting translator from cache")
	if err := h.close(); err != nil {
		e.logger.WithError(err).Warn("Failed to release evicted translator")
	}
}

// GetOrLoad returns the cached handle for (source, target), resolving and
// loading a model on a miss. Concurrent misses for the same key share one load.
// Failed loads are not cached.
func (e *Engine) GetOrLoad(ctx context.Context, source, target string) (*Handle, error) {
	key := ModelKey{Source: source, Target: target}
	if h, ok := e.cache.Get(key); ok {
		e.metrics.RecordCacheLookup(true)
		return h, nil
	}
	e.metrics.RecordCacheLookup(false)

	// The shared load is detached from any single caller's cancellation;
	// each caller still stops waiting when its own context ends.
	loadCtx := context.WithoutCancel(ctx)
	ch := e.loads.DoChan(key.String(), func() (interface{}, error) {
		if h, ok := e.cache.Get(key); ok {
			return h, nil
		}

		startTime := time.Now()
		res, err := e.resolver.Resolve(loadCtx, source, target)
		if err != nil {
			e.metrics.RecordModelLoad(time.Since(startTime), "failed")
			return nil, err
		}
		e.metrics.RecordModelLoad(time.Since(startTime), res.Outcome.String())

		h := &Handle{
			Key:      key,
			Model:    res.Model,
			Outcome:  res.Outcome,
			LoadedAt: time.Now(),
			pipeline: res.Pipeline,
		}
		e.cache.Add(key, h)
		e.metrics.SetCacheSize(e.cache.Len())
		return h, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TranslateOne translates text on h with the given output length limit.
// Backend failures are returned as *TranslationError.
func (e *Engine) TranslateOne(ctx context.Context, h *Handle, text string, maxLength int) (string, error) {
	out, err := e.translate(ctx, h, text, maxLength)
	if err != nil {
		return "", &TranslationError{ModelID: h.ModelID(), Chunk: -1, Err: err}
	}
	return out, nil
}

func (e *Engine) translate(ctx context.Context, h *Handle, text string, maxLength int) (string, error) {
	startTime := time.Now()
	out, err := h.pipeline.Translate(ctx, text, maxLength)
	e.metrics.RecordTranslationCall(time.Since(startTime), err == nil)
	return out, err
}

// TranslateChunked splits text into ChunkSize slices, translates them in
// order and joins the results with ChunkSeparator. The first failing chunk
// aborts the whole translation and no partial output is returned.
func (e *Engine) TranslateChunked(ctx context.Context, h *Handle, text string, progress ProgressFunc) (string, error) {
	chunks := SplitChunks(text, ChunkSize)
	e.metrics.RecordChunks(len(chunks))

	e.logger.WithFields(logrus.Fields{
		"model_id":     h.ModelID(),
		"text_length":  utf8.RuneCountInString(text),
		"total_chunks": len(chunks),
	}).Info("Translating text in chunks")

	translated := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", &TranslationError{ModelID: h.ModelID(), Chunk: i, Chunks: len(chunks), Err: err}
		}
		out, err := e.translate(ctx, h, chunk, e.maxLength)
		if err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"model_id": h.ModelID(),
				"chunk":    i + 1,
				"total":    len(chunks),
			}).Error("Chunk translation failed")
			return "", &TranslationError{ModelID: h.ModelID(), Chunk: i, Chunks: len(chunks), Err: err}
		}
		translated = append(translated, out)
		if progress != nil {
			progress(i+1, len(chunks))
		}
	}

	return strings.Join(translated, ChunkSeparator), nil
}

// SplitChunks cuts text into consecutive slices of size code points; the last
// slice may be shorter. Empty text yields no chunks.
func SplitChunks(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = ChunkSize
	}

	chunks := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	start, n := 0, 0
	for i := range text {
		if n == size {
			chunks = append(chunks, text[start:i])
			start, n = i, 0
		}
		n++
	}
	return append(chunks, text[start:])
}

// Purge drops every cached handle, releasing their pipelines.
func (e *Engine) Purge() {
	e.cache.Purge()
	e.metrics.SetCacheSize(0)
}

package translate

import (
	"fmt"
	"io"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache eviction policies.
const (
	CachePolicyLRU       = "lru"
	CachePolicyUnbounded = "unbounded"
)

// DefaultCacheSize is the LRU capacity used when none is configured.
const DefaultCacheSize = 16

// ModelKey identifies a cached translator by the requested language pair.
// Source may be "auto".
type ModelKey struct {
	Source string
	Target string
}

func (k ModelKey) String() string {
	return k.Source + "->" + k.Target
}

// Handle is a loaded translator for one ModelKey.
type Handle struct {
	Key      ModelKey
	Model    ResolvedModel
	Outcome  Outcome
	LoadedAt time.Time

	pipeline Pipeline
}

// ModelID returns the identifier of the loaded model.
func (h *Handle) ModelID() string { return h.Model.ModelID }

// close releases the pipeline if it holds resources.
func (h *Handle) close() error {
	if c, ok := h.pipeline.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ModelCache stores translator handles. Implementations are safe for
// concurrent use and replace entries atomically per key.
type ModelCache interface {
	Get(key ModelKey) (*Handle, bool)
	Add(key ModelKey, h *Handle)
	Len() int
	Purge()
}

// NewModelCache builds a cache for policy. onEvict, if set, is called for
// every handle dropped by the policy or by Purge.
func NewModelCache(policy string, size int, onEvict func(ModelKey, *Handle)) (ModelCache, error) {
	switch policy {
	case "", CachePolicyLRU:
		if size <= 0 {
			size = DefaultCacheSize
		}
		var (
			c   *lru.Cache[ModelKey, *Handle]
			err error
		)
		if onEvict != nil {
			c, err = lru.NewWithEvict(size, onEvict)
		} else {
			c, err = lru.New[ModelKey, *Handle](size)
		}
		if err != nil {
			return nil, fmt.Errorf("create lru cache: %w", err)
		}
		return &lruCache{c: c}, nil
	case CachePolicyUnbounded:
		return &unboundedCache{
			handles: make(map[ModelKey]*Handle),
			onEvict: onEvict,
		}, nil
	default:
		return nil, fmt.Errorf("unknown cache policy %q (supported: lru, unbounded)", policy)
	}
}

type lruCache struct {
	c *lru.Cache[ModelKey, *Handle]
}

func (l *lruCache) Get(key ModelKey) (*Handle, bool) { return l.c.Get(key) }
func (l *lruCache) Add(key ModelKey, h *Handle)      { l.c.Add(key, h) }
func (l *lruCache) Len() int                         { return l.c.Len() }
func (l *lruCache) Purge()                           { l.c.Purge() }

// unboundedCache keeps every handle for the lifetime of the process.
type unboundedCache struct {
	mu      sync.RWMutex
	handles map[ModelKey]*Handle
	onEvict func(ModelKey, *Handle)
}

func (u *unboundedCache) Get(key ModelKey) (*Handle, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	h, ok := u.handles[key]
	return h, ok
}

func (u *unboundedCache) Add(key ModelKey, h *Handle) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.handles[key] = h
}

func (u *unboundedCache) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.handles)
}

func (u *unboundedCache) Purge() {
	u.mu.Lock()
	old := u.handles
	u.handles = make(map[ModelKey]*Handle)
	u.mu.Unlock()

	if u.onEvict != nil {
		for k, h := range old {
			u.onEvict(k, h)
		}
	}
}

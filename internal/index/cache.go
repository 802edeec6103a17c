package index

import (
	"context"
	"sync"
	"time"

	"imgbed/pkg/types"
)

// Cache mirrors the index for the serving process. Writes through the store
// replace the cached value; a zero TTL keeps an entry until the next write.
type Cache interface {
	Get(ctx context.Context) ([]types.ImageRecord, bool)
	Set(ctx context.Context, records []types.ImageRecord)
}

// MemoryCache is the default in-process cache: a single guarded value.
type MemoryCache struct {
	mu     sync.RWMutex
	ttl    time.Duration
	loaded bool
	setAt  time.Time
	recs   []types.ImageRecord
}

// NewMemoryCache creates an in-process cache. ttl 0 means entries live for
// the process lifetime.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl}
}

func (c *MemoryCache) Get(_ context.Context) ([]types.ImageRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.loaded {
		return nil, false
	}
	if c.ttl > 0 && time.Since(c.setAt) > c.ttl {
		return nil, false
	}

	// Callers mutate their copy when building the next index revision.
	out := make([]types.ImageRecord, len(c.recs))
	copy(out, c.recs)
	return out, true
}

func (c *MemoryCache) Set(_ context.Context, records []types.ImageRecord) {
	recs := make([]types.ImageRecord, len(records))
	copy(recs, records)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = recs
	c.loaded = true
	c.setAt = time.Now()
}

package previewcache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultMaxSize is the entry capacity used when Options.MaxSize is zero.
const DefaultMaxSize = 200

// Options configures a Cache.
type Options[V any] struct {
	// MaxSize is the maximum number of entries. Zero means DefaultMaxSize.
	MaxSize int
	// MaxMemoryBytes is an optional byte budget, enforced only when Sizer is set.
	MaxMemoryBytes int64
	// Sizer estimates the memory held by a value.
	Sizer func(V) int64
}

// Stats is a snapshot of cache statistics.
type Stats struct {
	Size          int
	MaxSize       int
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	TotalRequests uint64
	// HitRate is Hits/TotalRequests in the range 0..1, or 0 with no requests.
	HitRate     float64
	MemoryBytes int64
}

// Cache is a strict LRU cache safe for concurrent use.
type Cache[V any] struct {
	mu        sync.Mutex
	lru       *simplelru.LRU[string, V]
	maxSize   int
	maxMemory int64
	sizer     func(V) int64

	hits      uint64
	misses    uint64
	evictions uint64
	memBytes  int64
}

// New creates a cache. Without a Sizer only the entry capacity is enforced
// and MemoryBytes stays zero.
func New[V any](opts Options[V]) (*Cache[V], error) {
	maxSize, maxMemoryBytes, sizer := opts.MaxSize, opts.MaxMemoryBytes, opts.Sizer
	if maxSize == 0 {
		maxSize = DefaultMaxSize
	}
	if maxSize < 0 {
		return nil, fmt.Errorf("previewcache: invalid max size %d", maxSize)
	}
	if maxMemoryBytes < 0 {
		return nil, errors.New("previewcache: negative memory budget")
	}

	c := &Cache[V]{
		maxSize:   maxSize,
		maxMemory: maxMemoryBytes,
		sizer:     sizer,
	}
	lru, err := simplelru.NewLRU[string, V](maxSize, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("previewcache: %w", err)
	}
	c.lru = lru
	return c, nil
}

// onEvict runs under c.mu for every entry leaving the list, whether through
// eviction, Remove or Purge.
func (c *Cache[V]) onEvict(_ string, v V) {
	c.memBytes -= c.sizeOf(v)
}

func (c *Cache[V]) sizeOf(v V) int64 {
	if c.sizer == nil {
		return 0
	}
	return c.sizer(v)
}

// Get returns the cached value for key and marks it most recently used.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Contains reports whether key is cached without touching recency or
// statistics.
func (c *Cache[V]) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(key)
}

// Put inserts or replaces the value for key and marks it most recently used.
// It reports how many entries were evicted to make room.
func (c *Cache[V]) Put(key string, v V) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.lru.Peek(key); ok {
		c.memBytes -= c.sizeOf(old)
	}

	evicted := 0
	if c.lru.Add(key, v) {
		evicted++
	}
	c.memBytes += c.sizeOf(v)

	if c.sizer != nil && c.maxMemory > 0 {
		// The newest entry is kept even if it alone exceeds the budget.
		for c.memBytes > c.maxMemory && c.lru.Len() > 1 {
			if _, _, ok := c.lru.RemoveOldest(); !ok {
				break
			}
			evicted++
		}
	}

	c.evictions += uint64(evicted)
	return evicted
}

// Remove deletes key and reports whether it was present. Removal is not
// counted as an eviction.
func (c *Cache[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// Clear removes every entry and resets the statistics.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
	c.memBytes = 0
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Keys returns the cached keys from least to most recently used.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// Stats returns a snapshot of the cache statistics.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var rate float64
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Size:          c.lru.Len(),
		MaxSize:       c.maxSize,
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		TotalRequests: total,
		HitRate:       rate,
		MemoryBytes:   c.memBytes,
	}
}

// Preload loads every key not already cached through load and stores the
// results. Keys whose load fails are skipped; their errors are joined in the
// returned error. Lookups made here do not count as hits or misses.
func (c *Cache[V]) Preload(keys []string, load func(key string) (V, error)) (int, error) {
	var errs []error
	loaded := 0
	for _, key := range keys {
		if c.Contains(key) {
			continue
		}
		v, err := load(key)
		if err != nil {
			errs = append(errs, fmt.Errorf("preload %s: %w", key, err))
			continue
		}
		c.Put(key, v)
		loaded++
	}
	return loaded, errors.Join(errs...)
}

func (c *Cache[V]) String() string {
	s := c.Stats()
	return fmt.Sprintf("PreviewCache size=%d/%d hit_rate=%.1f%% memory=%s",
		s.Size, s.MaxSize, s.HitRate*100, humanize.IBytes(uint64(max(s.MemoryBytes, 0))))
}

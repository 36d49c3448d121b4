// Package previewcache provides a bounded, thread-safe LRU cache for decoded
// preview images.
//
// Entries are keyed by file path. Capacity is a number of entries; a Get hit
// marks the entry most recently used and a Put beyond capacity evicts exactly
// the least recently used entry. When Options.Sizer and
// Options.MaxMemoryBytes are both set the cache additionally evicts from the
// LRU end until the estimated size fits the byte budget.
//
// The cache never loads anything on a miss; callers decode and Put. Preload
// is a convenience for warming many keys through a caller-supplied loader.
//
// Statistics (hits, misses, evictions, hit rate) are kept per instance and
// reset by Clear. There is no package-level instance; the process builds one
// cache and passes it to whatever needs it.
package previewcache

package memory

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sandevgo/mnemo/internal/core"
)

const (
	DefaultCacheMaxItems = 1500
	DefaultCacheMaxMB    = 75
)

type cacheEntry struct {
	record  core.MemoryRecord
	size    int64
	expires time.Time
	hasTTL  bool
}

// Cache is a bounded in-memory record cache with admission control.
// When either the item or byte bound would be exceeded the new entry is
// rejected rather than evicting a resident one; the persistent store
// stays authoritative so a rejection only costs a later reload.
type Cache struct {
	maxItems int
	maxBytes int64

	mu        sync.Mutex
	entries   map[string]*cacheEntry
	sizeBytes int64

	hits      int64
	misses    int64
	added     int64
	rejected  int64
	evictions int64

	now func() time.Time
}

func NewCache(maxItems int, maxBytes int64) *Cache {
	if maxItems <= 0 {
		maxItems = DefaultCacheMaxItems
	}
	if maxBytes <= 0 {
		maxBytes = DefaultCacheMaxMB * 1024 * 1024
	}
	return &Cache{
		maxItems: maxItems,
		maxBytes: maxBytes,
		entries:  make(map[string]*cacheEntry),
		now:      time.Now,
	}
}

// Set admits a record if it fits within both bounds. Replacing an
// existing key only needs room for the size delta. Returns
// core.ErrCacheRejected when the entry does not fit.
func (c *Cache) Set(id string, rec core.MemoryRecord, ttl time.Duration) error {
	size := entrySize(rec)

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, replacing := c.entries[id]

	projectedItems := len(c.entries)
	projectedBytes := c.sizeBytes + size
	if replacing {
		projectedBytes -= existing.size
	} else {
		projectedItems++
	}

	if projectedItems > c.maxItems || projectedBytes > c.maxBytes {
		c.rejected++
		return core.ErrCacheRejected
	}

	entry := &cacheEntry{record: rec, size: size}
	if ttl > 0 {
		entry.expires = c.now().Add(ttl)
		entry.hasTTL = true
	}

	if replacing {
		c.sizeBytes -= existing.size
	}
	c.entries[id] = entry
	c.sizeBytes += size
	c.added++
	return nil
}

// Get returns the cached record. Expired entries are purged lazily on
// touch and count as misses.
func (c *Cache) Get(id string) (core.MemoryRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		c.misses++
		return core.MemoryRecord{}, false
	}
	if entry.hasTTL && c.now().After(entry.expires) {
		c.evictLocked(id, entry)
		c.misses++
		return core.MemoryRecord{}, false
	}
	c.hits++
	return entry.record, true
}

// Has reports residency without counting a hit or miss, but still
// purges an expired entry it touches.
func (c *Cache) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return false
	}
	if entry.hasTTL && c.now().After(entry.expires) {
		c.evictLocked(id, entry)
		return false
	}
	return true
}

func (c *Cache) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return false
	}
	c.evictLocked(id, entry)
	return true
}

// GetAll returns every live record, purging expired entries as it goes.
func (c *Cache) GetAll() []core.MemoryRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make([]core.MemoryRecord, 0, len(c.entries))
	for id, entry := range c.entries {
		if entry.hasTTL && now.After(entry.expires) {
			c.evictLocked(id, entry)
			continue
		}
		out = append(out, entry.record)
	}
	return out
}

// GetMany resolves the ids it can; absent ids are simply skipped.
func (c *Cache) GetMany(ids []string) map[string]core.MemoryRecord {
	out := make(map[string]core.MemoryRecord, len(ids))
	for _, id := range ids {
		if rec, ok := c.Get(id); ok {
			out[id] = rec
		}
	}
	return out
}

// SetMany admits records best-effort and returns the ids that were
// rejected.
func (c *Cache) SetMany(records map[string]core.MemoryRecord, ttl time.Duration) []string {
	var rejected []string
	for id, rec := range records {
		if err := c.Set(id, rec, ttl); err != nil {
			rejected = append(rejected, id)
		}
	}
	return rejected
}

// GetOrSet returns the cached record or loads, caches and returns it.
// Loader errors propagate; an admission rejection after a successful
// load does not, the loaded record is returned uncached.
func (c *Cache) GetOrSet(id string, ttl time.Duration, loader func() (core.MemoryRecord, error)) (core.MemoryRecord, error) {
	if rec, ok := c.Get(id); ok {
		return rec, nil
	}

	rec, err := loader()
	if err != nil {
		return core.MemoryRecord{}, err
	}

	_ = c.Set(id, rec, ttl)
	return rec, nil
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.sizeBytes = 0
}

func (c *Cache) Stats() core.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := core.CacheStats{
		Hits:             c.hits,
		Misses:           c.misses,
		Added:            c.added,
		Rejected:         c.rejected,
		Evictions:        c.evictions,
		CurrentItems:     len(c.entries),
		MaxItems:         c.maxItems,
		CurrentSizeBytes: c.sizeBytes,
		MaxSizeBytes:     c.maxBytes,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

func (c *Cache) evictLocked(id string, entry *cacheEntry) {
	delete(c.entries, id)
	c.sizeBytes -= entry.size
	c.evictions++
}

func entrySize(rec core.MemoryRecord) int64 {
	data, err := json.Marshal(rec)
	if err != nil {
		return 0
	}
	return int64(len(data))
}

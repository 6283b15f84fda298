package filesniff

import (
	"container/list"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Cache stores classification results by key. Implementations must be safe
// for concurrent use.
type Cache interface {
	// Get returns the result stored under key.
	Get(key string) (Result, bool)

	// Set stores a result. A TTL of 0 means no expiry.
	Set(key string, value Result, ttl time.Duration)

	Delete(key string)
	Clear()
}

// CacheStats is implemented by caches that count their traffic.
type CacheStats interface {
	Stats() CacheStatistics
}

// CacheStatistics is a snapshot of cache counters.
type CacheStatistics struct {
	Hits      int64
	Misses    int64
	Size      int64
	Evictions int64
	HitRate   float64
}

// CacheKey derives the cache key of an object from its path, size and
// modification time, so a rewritten object misses. Fields are length
// prefixed.
func CacheKey(info *FileInfo) string {
	var buf [3 * 20]byte
	b := strconv.AppendInt(buf[:0], int64(len(info.Path)), 10)
	b = append(b, ':')

	d := xxhash.New()
	_, _ = d.Write(b)
	_, _ = d.WriteString(info.Path)

	b = strconv.AppendInt(buf[:0], info.Size, 10)
	b = append(b, ':')
	b = strconv.AppendInt(b, info.ModTime.UnixNano(), 10)
	_, _ = d.Write(b)

	return strconv.FormatUint(d.Sum64(), 16)
}

// DefaultCacheEntries is the capacity of a MemoryCache built without
// WithMaxEntries.
const DefaultCacheEntries = 10000

type cacheEntry struct {
	key     string
	value   Result
	expires time.Time // zero for no expiry
}

// CacheOption configures a MemoryCache.
type CacheOption func(*MemoryCache)

// WithMaxEntries bounds the number of results kept. The least recently used
// result is evicted first. n <= 0 removes the bound.
func WithMaxEntries(n int) CacheOption {
	return func(c *MemoryCache) {
		c.maxEntries = n
	}
}

// MemoryCache is an in-process LRU cache with per-entry expiry.
type MemoryCache struct {
	mu         sync.Mutex
	maxEntries int
	order      *list.List // front is most recently used
	entries    map[string]*list.Element

	hits      int64
	misses    int64
	evictions int64
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...CacheOption) *MemoryCache {
	c := &MemoryCache{
		maxEntries: DefaultCacheEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryCache) Get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return Result{}, false
	}
	e := el.Value.(*cacheEntry)
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		c.remove(el)
		c.evictions++
		c.misses++
		return Result{}, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return e.value, true
}

func (c *MemoryCache) Set(key string, value Result, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*cacheEntry)
		e.value, e.expires = value, expires
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, value: value, expires: expires})
	for c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		c.remove(c.order.Back())
		c.evictions++
	}
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.remove(el)
	}
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	clear(c.entries)
}

// Must be called with c.mu held.
func (c *MemoryCache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*cacheEntry).key)
}

// Stats implements CacheStats.
func (c *MemoryCache) Stats() CacheStatistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := CacheStatistics{
		Hits:      c.hits,
		Misses:    c.misses,
		Size:      int64(c.order.Len()),
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Cleanup drops expired entries. Expired entries are otherwise only dropped
// when looked up or pushed out by newer ones.
func (c *MemoryCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if e := el.Value.(*cacheEntry); !e.expires.IsZero() && now.After(e.expires) {
			c.remove(el)
			c.evictions++
		}
		el = prev
	}
}

var (
	_ Cache      = (*MemoryCache)(nil)
	_ CacheStats = (*MemoryCache)(nil)
)

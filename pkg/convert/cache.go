package convert

import (
	"container/list"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/knime/knime-dl4j-sub000/pkg/datatype"
	"github.com/knime/knime-dl4j-sub000/pkg/errors"
	"github.com/knime/knime-dl4j-sub000/pkg/metrics"
)

// DefaultCacheSize is the capacity used when none is configured.
const DefaultCacheSize = 10

// Resolver resolves a type pair to a converter. *Registry implements it.
type Resolver interface {
	Resolve(source, dest datatype.DataType) (TypeConverter, bool)
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits     int64
	Misses   int64
	Size     int
	Capacity int
}

var errUnresolved = errors.New(errors.ErrorTypeUnsupportedType, "unresolved")

type cacheKey struct {
	source string
	dest   datatype.DataType
}

type cacheEntry struct {
	key  cacheKey
	conv TypeConverter
}

// Cache is a bounded LRU of resolved converters. Concurrent lookups of the
// same missing key share one resolution. Failed resolutions are never stored.
type Cache struct {
	capacity int

	mu      sync.Mutex
	entries map[cacheKey]*list.Element
	lru     *list.List
	hits    int64
	misses  int64

	group singleflight.Group
}

// NewCache creates a cache holding at most capacity converters.
func NewCache(capacity int) (*Cache, error) {
	if capacity < 1 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "cache capacity must be at least 1, got %d", capacity)
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[cacheKey]*list.Element, capacity),
		lru:      list.New(),
	}, nil
}

// GetOrResolve returns the converter for (source, dest), resolving it with
// resolver on a miss. An unresolvable pair yields an unsupported_type error
// naming both types.
func (c *Cache) GetOrResolve(source, dest datatype.DataType, resolver Resolver) (TypeConverter, error) {
	key := cacheKey{source: source.Signature(), dest: dest}

	if conv, ok := c.get(key); ok {
		metrics.ConverterCacheLookups.WithLabelValues("hit").Inc()
		return conv, nil
	}
	metrics.ConverterCacheLookups.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(key.source+"|"+dest.Signature(), func() (interface{}, error) {
		if conv, ok := c.peek(key); ok {
			return conv, nil
		}
		conv, ok := resolver.Resolve(source, dest)
		if !ok {
			return nil, errUnresolved
		}
		c.put(key, conv)
		return conv, nil
	})
	if err != nil {
		// each caller gets its own error so row details can be attached
		return nil, UnsupportedError(source, dest)
	}
	return v.(TypeConverter), nil
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:     c.hits,
		Misses:   c.misses,
		Size:     c.lru.Len(),
		Capacity: c.capacity,
	}
}

// Purge empties the cache. Counters are kept.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]*list.Element, c.capacity)
	c.lru.Init()
}

func (c *Cache) get(key cacheKey) (TypeConverter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.lru.MoveToFront(el)
		c.hits++
		return el.Value.(*cacheEntry).conv, true
	}
	c.misses++
	return nil, false
}

// peek looks up without touching counters.
func (c *Cache) peek(key cacheKey) (TypeConverter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		return el.Value.(*cacheEntry).conv, true
	}
	return nil, false
}

func (c *Cache) put(key cacheKey, conv TypeConverter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).conv = conv
		c.lru.MoveToFront(el)
		return
	}
	for c.lru.Len() >= c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, conv: conv})
}

// UnsupportedError builds the error for a type pair without a converter.
func UnsupportedError(source, dest datatype.DataType) *errors.Error {
	return errors.Newf(errors.ErrorTypeUnsupportedType, "no converter from %s to %s", source.Signature(), dest.Signature()).
		WithDetail(errors.DetailSourceType, source.Signature()).
		WithDetail(errors.DetailDestinationType, dest.Signature())
}

package cache

import (
	"container/list"
	"sync"
	"time"
)

// DefaultCapacity is the number of entries an AudioCache keeps.
const DefaultCapacity = 100

// AudioCache is a bounded in-memory store for synthesized audio keyed by
// text and language. Eviction is strictly by insertion order: reading an
// entry or overwriting its value never moves it.
type AudioCache struct {
	capacity int

	items map[string]*list.Element
	order *list.List // front = oldest insertion

	mu    sync.Mutex
	stats Stats
}

type entry struct {
	key      string
	value    string
	storedAt time.Time
}

// NewAudioCache creates a cache holding at most capacity entries. A
// non-positive capacity selects DefaultCapacity.
func NewAudioCache(capacity int) *AudioCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &AudioCache{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity+1),
		order:    list.New(),
		stats:    Stats{Capacity: capacity},
	}
}

// Key builds the cache key for a piece of text in a language.
func Key(text, lang string) string {
	return text + "_" + lang
}

// Get returns the value stored under key.
func (c *AudioCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.LastAccess = time.Now()
	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return "", false
	}
	c.stats.Hits++
	return elem.Value.(*entry).value, true
}

// Put stores value under key. A new key goes to the back of the eviction
// order; once the cache holds more than its capacity the oldest insertion is
// dropped.
func (c *AudioCache) Put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry)
		c.stats.Bytes += int64(len(value) - len(e.value))
		e.value = value
		return
	}

	e := &entry{key: key, value: value, storedAt: time.Now()}
	c.items[key] = c.order.PushBack(e)
	c.stats.Bytes += int64(len(value))

	for c.order.Len() > c.capacity {
		c.evictOldest()
	}
}

// Contains reports whether key is cached without touching the stats.
func (c *AudioCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	return ok
}

// Len returns the number of cached entries.
func (c *AudioCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

// Keys returns the cached keys from oldest to newest insertion.
func (c *AudioCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*entry).key)
	}
	return keys
}

// Clear removes every entry.
func (c *AudioCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.capacity+1)
	c.order.Init()
	c.stats.Bytes = 0
}

// Stats returns a snapshot of the cache metrics.
func (c *AudioCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = c.order.Len()
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// evictOldest drops the oldest insertion. Must be called with the lock held.
func (c *AudioCache) evictOldest() {
	elem := c.order.Front()
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	e := elem.Value.(*entry)
	delete(c.items, e.key)
	c.stats.Bytes -= int64(len(e.value))
	c.stats.Evictions++
	c.stats.LastEvict = time.Now()
}

// Package cache provides the bounded in-memory store for synthesized
// audio, shared per synthesis backend, with LRU eviction.
package cache

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Default ceilings. Eviction triggers on whichever is hit first.
const (
	DefaultMaxEntries = 50
	DefaultMaxBytes   = 10 * 1024 * 1024
)

// Config bounds the cache.
type Config struct {
	MaxEntries int
	MaxBytes   int64
}

// DefaultConfig returns the standard ceilings.
func DefaultConfig() Config {
	return Config{MaxEntries: DefaultMaxEntries, MaxBytes: DefaultMaxBytes}
}

// entry is one cached synthesis result. Immutable after insert except for
// the access timestamp refresh on read.
type entry struct {
	key        string
	audio      []byte
	lastAccess time.Time
}

// Stats describes cache occupancy and effectiveness.
type Stats struct {
	Entries   int
	Bytes     int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// String renders the stats with humanized sizes.
func (s Stats) String() string {
	return fmt.Sprintf("entries=%d size=%s hits=%d misses=%d evictions=%d",
		s.Entries, humanize.IBytes(uint64(s.Bytes)), s.Hits, s.Misses, s.Evictions)
}

// Cache maps a (text, voice, rate) key to synthesized audio bytes. Reads
// refresh recency; writes evict the globally least-recently-accessed
// entries until both the entry-count and byte ceilings hold. Requests from
// one backend can overlap, so every operation takes the lock.
type Cache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	eviction *list.List // front = most recently used
	bytes    int64
	cfg      Config
	stats    Stats
}

// New creates a cache with the given ceilings; zero values fall back to
// the defaults.
func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Cache{
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		cfg:      cfg,
	}
}

// Key builds the composite cache key from normalized text, a backend
// voice identifier and the synthesis rate rounded to fixed precision, so
// differing playback settings never collide.
func Key(text, voice string, rate float64) string {
	normalized := strings.Join(strings.Fields(text), " ")
	return fmt.Sprintf("%s|%s|%.2f", normalized, voice, rate)
}

// Get returns the cached audio for key and refreshes its recency.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.eviction.MoveToFront(elem)
	e := elem.Value.(*entry)
	e.lastAccess = time.Now()
	c.stats.Hits++
	return e.audio, true
}

// Put inserts audio under key, first evicting LRU entries until the
// insert fits under both ceilings. A payload larger than the byte ceiling
// is not cached at all.
func (c *Cache) Put(key string, audio []byte) {
	size := int64(len(audio))
	if size > c.cfg.MaxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry)
		c.bytes += size - int64(len(e.audio))
		e.audio = audio
		e.lastAccess = time.Now()
		c.eviction.MoveToFront(elem)
		c.evictOverLimitLocked()
		return
	}

	for c.eviction.Len() >= c.cfg.MaxEntries || c.bytes+size > c.cfg.MaxBytes {
		if !c.evictOldestLocked() {
			break
		}
	}

	elem := c.eviction.PushFront(&entry{key: key, audio: audio, lastAccess: time.Now()})
	c.items[key] = elem
	c.bytes += size
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eviction.Len()
}

// Bytes returns the current total payload size.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Contains reports key presence without refreshing recency.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	c.bytes = 0
}

// Stats returns a copy of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.eviction.Len()
	s.Bytes = c.bytes
	return s
}

func (c *Cache) evictOverLimitLocked() {
	for c.eviction.Len() > c.cfg.MaxEntries || c.bytes > c.cfg.MaxBytes {
		if !c.evictOldestLocked() {
			return
		}
	}
}

func (c *Cache) evictOldestLocked() bool {
	elem := c.eviction.Back()
	if elem == nil {
		return false
	}
	e := elem.Value.(*entry)
	c.eviction.Remove(elem)
	delete(c.items, e.key)
	c.bytes -= int64(len(e.audio))
	c.stats.Evictions++
	return true
}

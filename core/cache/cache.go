// Package cache memoizes deck round trips keyed by content digest, so a
// deck saved again without changes is not parsed again.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/FocuswithJustin/deckir/core/cas"
	"github.com/FocuswithJustin/deckir/core/deck"
	"github.com/FocuswithJustin/deckir/core/dialect"
)

// Stats contains cache statistics.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
	MaxSize   int   `json:"max_size"`
}

// Config contains cache configuration options.
type Config struct {
	// MaxSize is the maximum number of entries (0 = unlimited).
	MaxSize int

	// TTL is the time-to-live for entries (0 = no expiration).
	TTL time.Duration
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{MaxSize: 256}
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// LRU is a thread-safe least-recently-used cache.
type LRU[K comparable, V any] struct {
	mu    sync.Mutex
	cfg   Config
	items map[K]*list.Element
	order *list.List // front is most recently used
	stats Stats
	now   func() time.Time
}

// NewLRU creates an LRU cache with the given configuration.
func NewLRU[K comparable, V any](cfg Config) *LRU[K, V] {
	if cfg.MaxSize < 0 {
		cfg.MaxSize = 0
	}
	return &LRU[K, V]{
		cfg:   cfg,
		items: make(map[K]*list.Element),
		order: list.New(),
		now:   time.Now,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if c.cfg.TTL > 0 && c.now().After(e.expiresAt) {
		c.remove(el)
		c.stats.Misses++
		return zero, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

// Put stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if c.cfg.TTL > 0 {
		expires = c.now().Add(c.cfg.TTL)
	}
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value, e.expiresAt = value, expires
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expires})
	if c.cfg.MaxSize > 0 && c.order.Len() > c.cfg.MaxSize {
		c.remove(c.order.Back())
		c.stats.Evictions++
	}
}

// Remove deletes key if present.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the cache statistics.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.order.Len()
	s.MaxSize = c.cfg.MaxSize
	return s
}

func (c *LRU[K, V]) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[K, V]).key)
}

// Parsed is a cached round trip.
type Parsed struct {
	Doc    *deck.Document
	Report deck.FidelityReport
}

// ParseCache memoizes deck.RoundTrip. Entries are keyed by the BLAKE3
// digest of the dialect name, source name and text, so edits to any of
// them miss. Cached documents are shared; callers must not modify them.
type ParseCache struct {
	lru *LRU[string, Parsed]
}

// NewParseCache creates a parse cache with the given configuration.
func NewParseCache(cfg Config) *ParseCache {
	return &ParseCache{lru: NewLRU[string, Parsed](cfg)}
}

// RoundTrip returns the cached round trip of text, computing it on a miss.
func (c *ParseCache) RoundTrip(text, source string, d *dialect.Dialect, opts ...deck.Option) Parsed {
	if d == nil {
		d = dialect.Default()
	}
	key := Key(d.Name(), source, text)
	if p, ok := c.lru.Get(key); ok {
		return p
	}
	opts = append([]deck.Option{deck.WithDialect(d)}, opts...)
	doc, _, report := deck.RoundTrip(text, source, opts...)
	p := Parsed{Doc: doc, Report: report}
	c.lru.Put(key, p)
	return p
}

// Forget drops every entry for source. It is used when a deck is removed.
func (c *ParseCache) Forget(source string) {
	c.lru.mu.Lock()
	var stale []*list.Element
	for el := c.lru.order.Front(); el != nil; el = el.Next() {
		if p := el.Value.(*entry[string, Parsed]).value; p.Doc != nil && p.Doc.Meta.SourceFile == source {
			stale = append(stale, el)
		}
	}
	for _, el := range stale {
		c.lru.remove(el)
	}
	c.lru.mu.Unlock()
}

// Stats returns the cache statistics.
func (c *ParseCache) Stats() Stats {
	return c.lru.Stats()
}

// Key is the cache key for one round trip.
func Key(dialectName, source, text string) string {
	return cas.HashString(dialectName + "\x00" + source + "\x00" + text)
}

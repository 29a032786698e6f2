package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// RenderCache memoizes rendered export images. Entries are keyed by the
// dataset revision and the encoding strategy, so any write to the dataset
// naturally misses the cache without explicit invalidation.
//
// Eviction is by total byte footprint rather than entry count: a stego
// carrier PNG can outweigh a QR symbol by orders of magnitude, so counting
// entries would make the budget meaningless.
type RenderCache struct {
	mu        sync.Mutex
	maxBytes  int64
	ttl       time.Duration
	usedBytes int64
	entries   map[string]*list.Element
	lru       *list.List
}

type renderEntry struct {
	key       string
	png       []byte
	expiresAt time.Time
}

// NewRenderCache creates a render cache holding up to maxBytes of
// encoded images, each kept for at most ttl.
func NewRenderCache(maxBytes int64, ttl time.Duration) *RenderCache {
	return &RenderCache{
		maxBytes: maxBytes,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

func renderKey(revision int64, strategy string) string {
	return fmt.Sprintf("%d:%s", revision, strategy)
}

// Get returns the cached image for a revision and strategy, if present.
func (c *RenderCache) Get(revision int64, strategy string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[renderKey(revision, strategy)]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*renderEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		return nil, false
	}

	c.lru.MoveToFront(elem)
	return entry.png, true
}

// Set stores a rendered image for a revision and strategy, evicting the
// least recently served renders until the byte budget holds.
func (c *RenderCache) Set(revision int64, strategy string, png []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := renderKey(revision, strategy)
	if elem, ok := c.entries[key]; ok {
		c.removeElement(elem)
	}

	entry := &renderEntry{
		key:       key,
		png:       png,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.entries[key] = c.lru.PushFront(entry)
	c.usedBytes += int64(len(png))

	for c.usedBytes > c.maxBytes && c.lru.Len() > 1 {
		c.removeElement(c.lru.Back())
	}
}

// Clear drops every cached render.
func (c *RenderCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.lru.Init()
	c.usedBytes = 0
}

// CleanExpired removes expired renders and reports how many were dropped.
func (c *RenderCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var stale []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*renderEntry).expiresAt) {
			stale = append(stale, elem)
		}
	}
	for _, elem := range stale {
		c.removeElement(elem)
	}
	return len(stale)
}

// Size returns the number of cached renders.
func (c *RenderCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Bytes returns the total byte footprint of cached renders.
func (c *RenderCache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedBytes
}

func (c *RenderCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*renderEntry)
	delete(c.entries, entry.key)
	c.lru.Remove(elem)
	c.usedBytes -= int64(len(entry.png))
}

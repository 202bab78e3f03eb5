package blogsync

import "sync"

// PayloadCache keeps fetched payloads for the lifetime of one run so a
// locator shared by several documents is read or downloaded once. It stops
// admitting entries once maxBytes of payload data is held.
type PayloadCache struct {
	mu       sync.RWMutex
	entries  map[string]AssetPayload
	size     int64
	maxBytes int64
}

// NewPayloadCache creates a cache holding at most maxBytes of data.
// A non-positive maxBytes disables the limit.
func NewPayloadCache(maxBytes int64) *PayloadCache {
	return &PayloadCache{entries: make(map[string]AssetPayload), maxBytes: maxBytes}
}

// Get returns the payload cached for source.
func (c *PayloadCache) Get(source string) (AssetPayload, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[source]
	return p, ok
}

// Put stores p under source unless the cache is full.
func (c *PayloadCache) Put(source string, p AssetPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[source]; ok {
		return
	}
	n := int64(len(p.Data))
	if c.maxBytes > 0 && c.size+n > c.maxBytes {
		return
	}
	c.entries[source] = p
	c.size += n
}

// Len returns the number of cached payloads.
func (c *PayloadCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

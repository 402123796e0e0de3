package sessioncache

import (
	"context"
	"sync"
	"time"

	"github.com/authgate/authgate/internal/model"
)

type memoryEntry struct {
	session   model.Session
	expiresAt time.Time
}

// MemoryCache is an in-process, lazily-expiring session cache with a
// background sweeper. Unlike a bounded LRU, entries are never evicted for
// capacity reasons — spec.md §4.4 sets no size bound, only a per-entry
// TTL derived from each session's own JWT expiry.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]*memoryEntry

	sweepInterval time.Duration
	stopOnce      sync.Once
	stop          chan struct{}

	hits, misses int64
}

// NewMemoryCache starts a MemoryCache with a background sweeper running
// every sweepInterval; a non-positive interval disables the sweeper
// (entries still expire lazily on Get).
func NewMemoryCache(sweepInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		items: make(map[string]*memoryEntry),
		stop:  make(chan struct{}),
	}
	if sweepInterval > 0 {
		c.sweepInterval = sweepInterval
		go c.runSweeper()
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, cookieValue string) (model.Session, bool) {
	c.mu.RLock()
	entry, ok := c.items[cookieValue]
	c.mu.RUnlock()
	if !ok {
		c.recordMiss()
		return model.Session{}, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.items, cookieValue)
		c.mu.Unlock()
		c.recordMiss()
		return model.Session{}, false
	}
	c.recordHit()
	return entry.session, true
}

func (c *MemoryCache) Set(_ context.Context, cookieValue string, session model.Session, ttl time.Duration) {
	c.mu.Lock()
	c.items[cookieValue] = &memoryEntry{session: session, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *MemoryCache) runSweeper() {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweepExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) sweepExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.items {
		if now.After(entry.expiresAt) {
			delete(c.items, key)
		}
	}
}

func (c *MemoryCache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *MemoryCache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// Stats returns hit/miss counters and the current entry count.
func (c *MemoryCache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.items)
}

package services

import (
	"sync"
	"time"
)

// NotifiedCache is the monitor's in-process memory of sessions already
// alerted and sessions seen converted. The persisted marker stays the source
// of truth; the cache only saves a redundant dispatch within one process.
type NotifiedCache struct {
	mu        sync.RWMutex
	notified  map[string]time.Time
	converted map[string]struct{}
}

func NewNotifiedCache() *NotifiedCache {
	return &NotifiedCache{
		notified:  make(map[string]time.Time),
		converted: make(map[string]struct{}),
	}
}

func (c *NotifiedCache) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.notified[id]
	return ok
}

// Add records id as notified. The first timestamp wins.
func (c *NotifiedCache) Add(id string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.notified[id]; !ok {
		c.notified[id] = at
	}
}

func (c *NotifiedCache) MarkConverted(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.converted[id] = struct{}{}
}

func (c *NotifiedCache) IsConverted(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.converted[id]
	return ok
}

// Len is the number of notified sessions.
func (c *NotifiedCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.notified)
}

package bot

import (
	"sync"
	"time"
)

// albumCache remembers the caption of a media group: Telegram puts
// the album caption on one member only, later members look it up
// here. Entries expire so the map does not grow with chat traffic.
type albumCache struct {
	mu      sync.Mutex
	entries map[string]albumEntry
	ttl     time.Duration
}

type albumEntry struct {
	caption string
	stored  time.Time
}

func newAlbumCache() *albumCache {
	return &albumCache{
		entries: make(map[string]albumEntry),
		ttl:     5 * time.Minute,
	}
}

func (c *albumCache) Put(groupID, caption string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune()
	c.entries[groupID] = albumEntry{caption: caption, stored: time.Now()}
}

func (c *albumCache) Get(groupID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[groupID]
	if !ok || time.Since(entry.stored) > c.ttl {
		delete(c.entries, groupID)
		return "", false
	}
	return entry.caption, true
}

// prune drops expired entries; called under the lock.
func (c *albumCache) prune() {
	now := time.Now()
	for id, entry := range c.entries {
		if now.Sub(entry.stored) > c.ttl {
			delete(c.entries, id)
		}
	}
}

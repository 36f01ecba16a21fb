package session

import (
	"sync"
	"time"

	"github.com/genoweb/genoserve/internal/models"
)

// LocationKey identifies one file-location query: the sample, the requested
// artifact type, an optional genomic locus, and the query flags.
type LocationKey struct {
	Sample          string
	Type            string
	Locus           string
	ReturnIfMissing bool
	Multiple        bool
}

type locationEntry struct {
	locations []models.FileLocation
	stored    time.Time
}

// LocationCache memoizes resolved file locations. Resolving a location can
// involve slow network storage, so hits within the TTL skip the resolver
// entirely.
type LocationCache struct {
	mu      sync.RWMutex
	entries map[LocationKey]locationEntry
	ttl     time.Duration
}

// NewLocationCache creates a cache whose entries expire after ttl.
func NewLocationCache(ttl time.Duration) *LocationCache {
	return &LocationCache{
		entries: make(map[LocationKey]locationEntry),
		ttl:     ttl,
	}
}

// Get returns the cached locations for a key and whether a fresh entry was
// present.
func (c *LocationCache) Get(key LocationKey) ([]models.FileLocation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || time.Since(entry.stored) > c.ttl {
		return nil, false
	}
	return entry.locations, true
}

// Put stores the resolved locations for a key.
func (c *LocationCache) Put(key LocationKey, locations []models.FileLocation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = locationEntry{locations: locations, stored: time.Now()}
}

// Sweep drops every stale entry and returns how many were removed.
func (c *LocationCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if time.Since(entry.stored) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

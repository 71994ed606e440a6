package cache

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"facebook-video-server/pkg/models"
)

type entry struct {
	result   *models.ExtractionResult
	storedAt time.Time
}

// Cache is a TTL-bound in-memory store of extraction results. Expired
// entries are dropped lazily on lookup.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// New creates a cache with the given entry lifetime.
func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
		logger:  zerolog.New(os.Stdout).With().Timestamp().Str("component", "cache").Logger(),
	}
}

// Key derives the cache key for a request. Authenticated and anonymous
// extractions of the same URL can see different content, so the auth
// mode is part of the key.
func Key(url string, useAuth bool) string {
	return url + "_auth_" + strconv.FormatBool(useAuth)
}

// Get returns the cached result for key, or nil if absent or expired.
func (c *Cache) Get(key string) *models.ExtractionResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil
	}
	return e.result
}

// Put stores a result under key, replacing any previous entry.
func (c *Cache) Put(key string, result *models.ExtractionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{result: result, storedAt: c.now()}
}

// Clear drops all entries and returns how many were removed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]entry)
	c.logger.Info().Int("entries", n).Msg("Cache cleared")
	return n
}

// Len reports the number of entries currently stored, including any
// that have expired but not yet been swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

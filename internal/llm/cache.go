package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/Veraticus/kvlabel/internal/model"
)

// cacheEntry represents a parsed response to one sublist prompt.
type cacheEntry struct {
	expiry time.Time
	labels model.LabelFile
}

// responseCache provides thread-safe caching of parsed sublist responses,
// keyed by model, temperature and prompt.
type responseCache struct {
	entries map[string]cacheEntry
	now     func() time.Time
	ttl     time.Duration
	mu      sync.RWMutex
}

// newResponseCache creates a new cache with the specified TTL.
func newResponseCache(ttl time.Duration) *responseCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &responseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// cacheKey identifies one request. The prompt is hashed so entries stay small.
func cacheKey(modelName string, t model.Temperature, prompt string) string {
	h := sha256.New()
	h.Write([]byte(modelName))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(float64(t), 'f', -1, 64)))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

// get retrieves labels from the cache if they exist and haven't expired.
func (c *responseCache) get(key string) (model.LabelFile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.expiry) {
		return nil, false
	}
	return entry.labels, true
}

// set stores labels in the cache and drops expired entries.
func (c *responseCache) set(key string, labels model.LabelFile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiry) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{
		labels: labels,
		expiry: now.Add(c.ttl),
	}
}

// size returns the number of entries in the cache.
func (c *responseCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

package media

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Cache TTL and sweep cadence
const (
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = 10 * time.Minute
)

type cacheEntry struct {
	info      *StreamInfo
	timestamp time.Time
	mtime     time.Time
}

// Cache memoizes probe results keyed by absolute path. An entry is served
// only while it is younger than the TTL and the file's modification time
// still matches; anything else triggers a fresh probe.
type Cache struct {
	probe   ProbeFunc
	ttl     time.Duration
	log     zerolog.Logger
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewCache creates a metadata cache over the given prober.
func NewCache(probe ProbeFunc, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		probe:   probe,
		ttl:     ttl,
		log:     log.With().Str("component", "metadata-cache").Logger(),
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the stream layout of path, probing only when the cached
// entry is absent, expired, or the file changed underneath it.
func (c *Cache) Get(ctx context.Context, path string) (*StreamInfo, error) {
	c.mu.Lock()
	entry, ok := c.entries[path]
	if ok {
		if c.now().Sub(entry.timestamp) < c.ttl {
			if st, err := os.Stat(path); err == nil && st.ModTime().Equal(entry.mtime) {
				c.mu.Unlock()
				return entry.info, nil
			}
		}
		delete(c.entries, path)
	}
	c.mu.Unlock()

	info, err := c.probe(ctx, path)
	if err != nil {
		return nil, err
	}

	st, err := os.Stat(path)
	if err != nil {
		// Probed fine but the file is already gone; hand the result
		// back without caching it.
		return info, nil
	}

	c.mu.Lock()
	c.entries[path] = cacheEntry{info: info, timestamp: c.now(), mtime: st.ModTime()}
	c.mu.Unlock()
	return info, nil
}

// Invalidate removes the entry for one path.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// InvalidateAll clears the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartSweep launches the background eviction loop that drops entries
// older than the TTL, bounding memory growth independent of lookups.
// It stops when ctx is cancelled.
func (c *Cache) StartSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

func (c *Cache) sweep() {
	now := c.now()
	c.mu.Lock()
	for path, entry := range c.entries {
		if now.Sub(entry.timestamp) >= c.ttl {
			delete(c.entries, path)
		}
	}
	remaining := len(c.entries)
	c.mu.Unlock()
	c.log.Debug().Int("entries", remaining).Msg("cache sweep done")
}

package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/mbrgrep/internal/remote"
)

// Cache configuration constants
const (
	DefaultMaxEntries      = 256
	DefaultTTL             = 5 * time.Minute
	DefaultCleanupInterval = time.Minute
)

// cachedOutput is one stored tool result
type cachedOutput struct {
	Result      remote.Result
	CachedAt    int64 // Unix nano for atomic compare
	AccessCount int64 // Atomic counter
}

// OutputCache keeps recent search tool outputs keyed by a fingerprint of
// environment and command line. Only completed searches (exit 0 or 1) are
// stored, so failures are always retried.
type OutputCache struct {
	entries sync.Map // map[uint64]*cachedOutput

	// Configuration (read-only after creation)
	maxEntries int64
	ttlNanos   int64

	// Atomic counters
	hits      int64
	misses    int64
	evictions int64
	count     int64

	createdAt time.Time
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
}

// CacheConfig defines configuration options
type CacheConfig struct {
	MaxEntries      int
	TTL             time.Duration
	AutoCleanup     bool
	CleanupInterval time.Duration
}

// DefaultCacheConfig returns default configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxEntries:      DefaultMaxEntries,
		TTL:             DefaultTTL,
		AutoCleanup:     true,
		CleanupInterval: DefaultCleanupInterval,
	}
}

// NewOutputCache creates a new cache. Call Close to stop auto cleanup.
func NewOutputCache(config CacheConfig) *OutputCache {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultMaxEntries
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}

	c := &OutputCache{
		maxEntries: int64(config.MaxEntries),
		ttlNanos:   config.TTL.Nanoseconds(),
		createdAt:  time.Now(),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	if config.AutoCleanup {
		interval := config.CleanupInterval
		if interval <= 0 {
			interval = DefaultCleanupInterval
		}
		go c.startAutoCleanup(interval)
	} else {
		close(c.done)
	}
	return c
}

// Key fingerprints a command line for an environment
func Key(command string, env remote.Environment) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(env.String())
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(command)
	return d.Sum64()
}

// Get returns a copy of the stored result, if present and not expired
func (c *OutputCache) Get(command string, env remote.Environment) (*remote.Result, bool) {
	if c == nil {
		return nil, false
	}
	key := Key(command, env)
	if value, ok := c.entries.Load(key); ok {
		cached := value.(*cachedOutput)
		if time.Now().UnixNano()-atomic.LoadInt64(&cached.CachedAt) <= c.ttlNanos {
			atomic.AddInt64(&cached.AccessCount, 1)
			atomic.AddInt64(&c.hits, 1)
			result := cached.Result
			return &result, true
		}
		if c.entries.CompareAndDelete(key, value) {
			atomic.AddInt64(&c.count, -1)
		}
	}
	atomic.AddInt64(&c.misses, 1)
	return nil, false
}

// Put stores a result. Results with an exit code other than 0 or 1 are ignored.
func (c *OutputCache) Put(command string, env remote.Environment, result *remote.Result) {
	if c == nil || result == nil || result.ExitCode > 1 || result.ExitCode < 0 {
		return
	}
	entry := &cachedOutput{Result: *result, CachedAt: time.Now().UnixNano()}
	if _, loaded := c.entries.Swap(Key(command, env), entry); loaded {
		return
	}
	if atomic.AddInt64(&c.count, 1) > c.maxEntries {
		c.evictOldest()
	}
}

func (c *OutputCache) evictOldest() {
	var oldestKey interface{}
	var oldestTime int64 = 1<<63 - 1

	c.entries.Range(func(key, value interface{}) bool {
		cachedAt := atomic.LoadInt64(&value.(*cachedOutput).CachedAt)
		if cachedAt < oldestTime {
			oldestTime = cachedAt
			oldestKey = key
		}
		return true
	})

	if oldestKey != nil {
		if _, ok := c.entries.LoadAndDelete(oldestKey); ok {
			atomic.AddInt64(&c.count, -1)
			atomic.AddInt64(&c.evictions, 1)
		}
	}
}

// Cleanup removes expired entries
func (c *OutputCache) Cleanup() {
	now := time.Now().UnixNano()
	c.entries.Range(func(key, value interface{}) bool {
		if now-atomic.LoadInt64(&value.(*cachedOutput).CachedAt) > c.ttlNanos {
			if c.entries.CompareAndDelete(key, value) {
				atomic.AddInt64(&c.count, -1)
				atomic.AddInt64(&c.evictions, 1)
			}
		}
		return true
	})
}

// Clear removes every entry
func (c *OutputCache) Clear() {
	c.entries.Range(func(key, _ interface{}) bool {
		if _, ok := c.entries.LoadAndDelete(key); ok {
			atomic.AddInt64(&c.count, -1)
		}
		return true
	})
}

func (c *OutputCache) startAutoCleanup(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.stop:
			return
		}
	}
}

// Close stops the cleanup goroutine
func (c *OutputCache) Close() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// CacheInfo provides cache statistics
type CacheInfo struct {
	Entries   int64
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
	TTL       time.Duration
	Uptime    time.Duration
}

// Info returns a snapshot of the cache statistics
func (c *OutputCache) Info() CacheInfo {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	info := CacheInfo{
		Entries:   atomic.LoadInt64(&c.count),
		Hits:      hits,
		Misses:    misses,
		Evictions: atomic.LoadInt64(&c.evictions),
		TTL:       time.Duration(c.ttlNanos),
		Uptime:    time.Since(c.createdAt),
	}
	if total := hits + misses; total > 0 {
		info.HitRate = float64(hits) / float64(total)
	}
	return info
}

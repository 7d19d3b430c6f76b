package comps

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ResultTTL is how long a lookup result stays fresh.
const ResultTTL = 4 * time.Hour

// Cache stores lookup results by normalized query.
type Cache interface {
	Get(ctx context.Context, key string) (MarketStats, bool, error)
	Set(ctx context.Context, key string, stats MarketStats, ttl time.Duration) error
}

// Clock abstracts time for expiry checks.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// CacheKey normalizes a query: trimmed and lowercased.
func CacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

type memoryEntry struct {
	stats     MarketStats
	expiresAt time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	clock   Clock
	entries map[string]memoryEntry
}

// NewMemoryCache creates an empty cache. A nil clock uses the wall clock.
func NewMemoryCache(clock Clock) *MemoryCache {
	if clock == nil {
		clock = SystemClock
	}
	return &MemoryCache{clock: clock, entries: make(map[string]memoryEntry)}
}

// Get drops the entry when it has expired.
func (m *MemoryCache) Get(_ context.Context, key string) (MarketStats, bool, error) {
	now := m.clock.Now()
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return MarketStats{}, false, nil
	}
	if !now.Before(e.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && !now.Before(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return MarketStats{}, false, nil
	}
	return e.stats, true, nil
}

// Set also sweeps out every expired entry.
func (m *MemoryCache) Set(_ context.Context, key string, stats MarketStats, ttl time.Duration) error {
	now := m.clock.Now()
	m.mu.Lock()
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = memoryEntry{stats: stats, expiresAt: now.Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

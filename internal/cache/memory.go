package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value    string
	storedAt time.Time
}

// Memory is an in-process PriceCache with lazy TTL expiry. Entries are
// checked for staleness at read time and never swept; a stale entry stays
// in the map until a later Put overwrites it. Growth is bounded by the
// number of distinct keys ever written.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return "", false
	}
	if m.now().Sub(entry.storedAt) >= m.ttl {
		return "", false
	}
	return entry.value, true
}

func (m *Memory) Put(_ context.Context, key, value string) {
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: value, storedAt: m.now()}
	m.mu.Unlock()
}

package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
	lastUsed  time.Time
}

// Memory is an in-process TTL cache with size-bounded eviction of the
// least recently used entries. The clock is injectable for tests.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	maxEntries int // 0 = unlimited
	now        func() time.Time
}

// NewMemory creates a memory cache holding at most maxEntries values.
func NewMemory(maxEntries int) *Memory {
	return NewMemoryWithClock(maxEntries, time.Now)
}

// NewMemoryWithClock is NewMemory with an explicit clock.
func NewMemoryWithClock(maxEntries int, now func() time.Time) *Memory {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &Memory{
		entries:    make(map[string]*memoryEntry),
		maxEntries: maxEntries,
		now:        now,
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	e.lastUsed = m.now()
	value := make([]byte, len(e.value))
	copy(value, e.value)
	return value, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	now := m.now()
	m.entries[key] = &memoryEntry{
		value:     stored,
		expiresAt: now.Add(ttl),
		lastUsed:  now,
	}
	m.evictIfNeeded()
	return nil
}

func (m *Memory) Invalidate(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// evictIfNeeded removes least recently used entries while the cache
// exceeds maxEntries. Must be called with the lock held.
func (m *Memory) evictIfNeeded() {
	if m.maxEntries <= 0 || len(m.entries) <= m.maxEntries {
		return
	}
	type keyed struct {
		key      string
		lastUsed time.Time
	}
	all := make([]keyed, 0, len(m.entries))
	for k, e := range m.entries {
		all = append(all, keyed{key: k, lastUsed: e.lastUsed})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].lastUsed.Before(all[j].lastUsed)
	})
	for i := 0; i < len(all)-m.maxEntries; i++ {
		delete(m.entries, all[i].key)
	}
}

// Len returns the current number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

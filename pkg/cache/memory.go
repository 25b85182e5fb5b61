package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	entry     Entry
	expiresAt time.Time
}

// sweepInterval bounds how often Set scans for expired entries.
const sweepInterval = time.Minute

// Memory is an in-process Store. Expired entries are dropped on read, and
// Set sweeps the whole map at most once per sweepInterval.
type Memory struct {
	mu        sync.Mutex
	items     map[string]memoryItem
	hits      int64
	misses    int64
	now       func() time.Time
	lastSweep time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (*Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if ok && !m.now().Before(item.expiresAt) {
		delete(m.items, key)
		ok = false
	}
	if !ok {
		m.misses++
		return nil, false, nil
	}
	m.hits++
	entry := item.entry
	return &entry, true, nil
}

func (m *Memory) Set(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	if entry == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if now.Sub(m.lastSweep) >= sweepInterval {
		m.sweepLocked(now)
	}
	m.items[key] = memoryItem{entry: *entry, expiresAt: now.Add(effectiveTTL(ttl))}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *Memory) Flush(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]memoryItem)
	return nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(m.now())
	return Stats{Backend: "memory", Keys: int64(len(m.items)), Hits: m.hits, Misses: m.misses}, nil
}

// sweepLocked drops expired entries. Callers hold mu.
func (m *Memory) sweepLocked(now time.Time) {
	for key, item := range m.items {
		if !now.Before(item.expiresAt) {
			delete(m.items, key)
		}
	}
	m.lastSweep = now
}

package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger is a process-local Ledger for single-node deployments and
// tests. Expired entries are invisible immediately and reclaimed by Sweep.
type MemoryLedger struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryLedger(now func() time.Time) *MemoryLedger {
	if now == nil {
		now = time.Now
	}
	return &MemoryLedger{now: now, entries: make(map[string]memoryEntry)}
}

func (l *MemoryLedger) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.entries[key]; ok && entry.expiresAt.After(now) {
		return false, nil
	}
	l.entries[key] = memoryEntry{count: 1, expiresAt: now.Add(minTTL(ttl))}
	return true, nil
}

func (l *MemoryLedger) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}

func (l *MemoryLedger) Claimed(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	return ok && entry.expiresAt.After(l.now()), nil
}

func (l *MemoryLedger) Attempt(_ context.Context, key string, ttl time.Duration) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok || !entry.expiresAt.After(now) {
		entry = memoryEntry{expiresAt: now.Add(minTTL(ttl))}
	}
	entry.count++
	l.entries[key] = entry
	return entry.count, nil
}

// Sweep drops expired entries and reports how many were removed.
func (l *MemoryLedger) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, entry := range l.entries {
		if !entry.expiresAt.After(now) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

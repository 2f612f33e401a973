package readcache

import (
	"context"
	"regexp"
	"sync"
	"time"
)

// MemoryBackend keeps entries in process memory
type MemoryBackend struct {
	entries map[string]*Entry
	mu      sync.RWMutex
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]*Entry),
	}
}

// Get returns the entry when it exists and now < ExpiresAt
func (b *MemoryBackend) Get(_ context.Context, key string, now time.Time) (*Entry, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, exists := b.entries[key]
	if !exists || !now.Before(entry.ExpiresAt) {
		return nil, false, nil
	}
	return entry, true, nil
}

// Set stores the entry, replacing any previous value for the key
func (b *MemoryBackend) Set(_ context.Context, entry *Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[entry.Key] = entry
	return nil
}

// DeleteMatching removes all keys matched by pattern
func (b *MemoryBackend) DeleteMatching(_ context.Context, pattern *regexp.Regexp) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key := range b.entries {
		if pattern.MatchString(key) {
			delete(b.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Sweep removes entries whose expiry is at or before now
func (b *MemoryBackend) Sweep(_ context.Context, now time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key, entry := range b.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(b.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored entries, expired or not
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

package broadcast

import (
	"context"
	"sync"
)

// Channel is the medium shared by every view of one client profile.
// A payload written by one view is observed once by every watcher,
// the writer included. Empty payloads are never delivered.
type Channel interface {
	// Write publishes payload to all watchers
	Write(payload []byte) error

	// Watch calls fn for each payload written until ctx is cancelled.
	// It returns once watching has started.
	Watch(ctx context.Context, fn func(payload []byte)) error
}

// MemoryChannel is an in-process Channel for embedded views and tests.
// Delivery is synchronous on the writer's goroutine.
type MemoryChannel struct {
	watchers map[uint64]func([]byte)
	nextID   uint64
	mu       sync.RWMutex
}

// NewMemoryChannel creates a channel with no watchers
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{watchers: make(map[uint64]func([]byte))}
}

// Write delivers a copy of payload to every watcher
func (c *MemoryChannel) Write(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}

	c.mu.RLock()
	watchers := make([]func([]byte), 0, len(c.watchers))
	for _, fn := range c.watchers {
		watchers = append(watchers, fn)
	}
	c.mu.RUnlock()

	for _, fn := range watchers {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		fn(buf)
	}
	return nil
}

// Watch registers fn until ctx is done
func (c *MemoryChannel) Watch(ctx context.Context, fn func([]byte)) error {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.watchers[id] = fn
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	}()
	return nil
}

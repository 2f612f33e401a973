package broadcast

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultKeyName is the shared key file inside a profile directory
const DefaultKeyName = "engagement.key"

// ErrChannelClosed is returned by Write after Close
var ErrChannelClosed = errors.New("engagement channel closed")

// DefaultLinger is how long a written payload stays in the key before it is cleared
const DefaultLinger = 250 * time.Millisecond

// FileChannel is a cross-process Channel backed by one key file that every
// view of a profile watches. A write replaces the file atomically and the
// writer clears it again after a short linger; watchers react to the write,
// never to the cleared state.
type FileChannel struct {
	logger *slog.Logger
	timers map[*time.Timer]pendingClear
	dir    string
	path   string
	linger time.Duration
	mu     sync.Mutex
	closed bool
}

// pendingClear is a write whose key still has to be emptied
type pendingClear struct {
	deadline time.Time
	payload  []byte
}

// FileChannelOption configures a FileChannel
type FileChannelOption func(*FileChannel)

// WithLinger overrides DefaultLinger
func WithLinger(d time.Duration) FileChannelOption {
	return func(c *FileChannel) {
		if d > 0 {
			c.linger = d
		}
	}
}

// WithFileLogger sets the logger for watch errors
func WithFileLogger(logger *slog.Logger) FileChannelOption {
	return func(c *FileChannel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewFileChannel uses dir/DefaultKeyName as the shared key, creating dir if needed
func NewFileChannel(dir string, opts ...FileChannelOption) (*FileChannel, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create profile dir: %w", err)
	}
	c := &FileChannel{
		dir:    dir,
		path:   filepath.Join(dir, DefaultKeyName),
		linger: DefaultLinger,
		logger: slog.Default(),
		timers: make(map[*time.Timer]pendingClear),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Path returns the key file location
func (c *FileChannel) Path() string {
	return c.path
}

// Write replaces the key with payload and schedules the clear
func (c *FileChannel) Write(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	if err := c.replace(payload); err != nil {
		return err
	}

	var timer *time.Timer
	timer = time.AfterFunc(c.linger, func() {
		c.clearIfOwned(payload)
		c.mu.Lock()
		delete(c.timers, timer)
		c.mu.Unlock()
	})
	c.timers[timer] = pendingClear{deadline: time.Now().Add(c.linger), payload: payload}
	return nil
}

// replace writes through a temp file and a rename so watchers never read a partial payload
func (c *FileChannel) replace(payload []byte) error {
	tmp, err := os.CreateTemp(c.dir, ".engagement-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp key: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write key: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close key: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to publish key: %w", err)
	}
	return nil
}

// clearIfOwned empties the key unless another writer has replaced it since
func (c *FileChannel) clearIfOwned(payload []byte) {
	current, err := os.ReadFile(c.path)
	if err != nil || !bytes.Equal(current, payload) {
		return
	}
	if err := os.WriteFile(c.path, nil, 0o600); err != nil {
		c.logger.Debug("failed to clear engagement key", "path", c.path, "error", err)
	}
}

// Watch observes the key file with fsnotify until ctx is cancelled
func (c *FileChannel) Watch(ctx context.Context, fn func([]byte)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// The directory is watched rather than the file, since each write renames a new file into place.
	if err := watcher.Add(c.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", c.dir, err)
	}

	go c.watchLoop(ctx, watcher, fn)
	return nil
}

func (c *FileChannel) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, fn func([]byte)) {
	defer watcher.Close()

	var last []byte
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != c.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			payload, err := os.ReadFile(c.path)
			if err != nil {
				continue
			}
			if len(payload) == 0 {
				last = nil
				continue
			}
			// One rename can surface as several events
			if bytes.Equal(payload, last) {
				continue
			}
			last = payload
			fn(payload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Debug("engagement key watcher error", "error", err)
		}
	}
}

// Close stops accepting writes and empties the key for every write still
// lingering, once its linger has passed. Watchers stop with their context.
func (c *FileChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	var pending []pendingClear
	for timer, p := range c.timers {
		if timer.Stop() {
			pending = append(pending, p)
		}
	}
	c.timers = map[*time.Timer]pendingClear{}
	c.mu.Unlock()

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].deadline.Before(pending[j].deadline)
	})
	for _, p := range pending {
		if wait := time.Until(p.deadline); wait > 0 {
			time.Sleep(wait)
		}
		c.clearIfOwned(p.payload)
	}
	return nil
}

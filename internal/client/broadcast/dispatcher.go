package broadcast

import "sync"

// Handler consumes one message
type Handler func(EngagementChanged)

// Dispatcher fans a message out synchronously to every handler registered in
// the same view. Handlers run on the publishing goroutine, outside the lock.
type Dispatcher struct {
	handlers map[uint64]Handler
	nextID   uint64
	mu       sync.RWMutex
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[uint64]Handler)}
}

// Subscribe registers h and returns a func that removes it
func (d *Dispatcher) Subscribe(h Handler) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.handlers[id] = h
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.handlers, id)
			d.mu.Unlock()
		})
	}
}

// Dispatch delivers msg to every current handler and reports how many ran
func (d *Dispatcher) Dispatch(msg EngagementChanged) int {
	d.mu.RLock()
	handlers := make([]Handler, 0, len(d.handlers))
	for _, h := range d.handlers {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
	return len(handlers)
}

// Package broadcast provides a current-value channel: new listeners immediately receive the
// latest published value and every listener receives all the values published afterwards.
package broadcast

import (
	"slices"
	"sync"
)

// Listener receives published values.
type Listener[T any] func(T)

// Channel is a replay-last-value broadcast channel. The zero value is not usable, see New.
//
// Deliveries are serialized: a listener never runs concurrently with another delivery of the
// same channel. Listeners may unsubscribe but must not publish or subscribe on the channel they
// are invoked from.
type Channel[T any] struct {
	deliver sync.Mutex

	mu        sync.Mutex
	last      T
	listeners map[uint64]Listener[T]
	nextID    uint64
}

// New creates a channel holding initial as its current value.
func New[T any](initial T) *Channel[T] {
	return &Channel[T]{last: initial, listeners: make(map[uint64]Listener[T])}
}

// Value returns the current value.
func (c *Channel[T]) Value() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Publish sets the current value and delivers it to every listener.
func (c *Channel[T]) Publish(v T) {
	c.deliver.Lock()
	defer c.deliver.Unlock()

	c.mu.Lock()
	c.last = v
	listeners := c.snapshot()
	c.mu.Unlock()

	for _, l := range listeners {
		l(v)
	}
}

// Subscribe registers l and invokes it with the current value before returning.
func (c *Channel[T]) Subscribe(l Listener[T]) (unsubscribe func()) {
	c.deliver.Lock()
	defer c.deliver.Unlock()

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	last := c.last
	c.mu.Unlock()

	l(last)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Len returns the number of registered listeners.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// snapshot must be called with mu held. Listeners are returned in subscription order.
func (c *Channel[T]) snapshot() []Listener[T] {
	ids := make([]uint64, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Listener[T], len(ids))
	for i, id := range ids {
		out[i] = c.listeners[id]
	}
	return out
}

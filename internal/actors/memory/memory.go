// Package memory is a process-local key space. A Space plays the role of the browser storage
// shared by every tab; each Handle plays one tab.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rbroggi/souqly/internal/core/model"
	"github.com/rbroggi/souqly/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// NewSpace creates an empty key space.
func NewSpace() *Space {
	return &Space{
		data:     make(map[string][]byte),
		watchers: make(map[string]*watcher),
	}
}

// Space is a shared, concurrency-safe key space.
type Space struct {
	mu       sync.RWMutex
	data     map[string][]byte
	watchers map[string]*watcher
}

type watcher struct {
	origin string
	prefix string
	fn     func(key string)
}

// HandleOptArgs are the optional arguments of Handle.
type HandleOptArgs = func(*Handle)

// WithLogger overrides the logger of the handle.
func WithLogger(log logrus.FieldLogger) HandleOptArgs {
	return func(h *Handle) {
		h.log = log
	}
}

// Handle returns a new handle on the space. Writes through a handle are reported to the
// watchers of every other handle.
func (s *Space) Handle(optArgs ...HandleOptArgs) *Handle {
	h := &Handle{
		space:  s,
		origin: uuid.NewString(),
		log:    logrus.StandardLogger(),
	}
	for _, opt := range optArgs {
		opt(h)
	}
	h.log = h.log.WithField("origin", h.origin)
	return h
}

// Handle is a ports.KeyValueStore and ports.ChangeNotifier bound to a Space.
type Handle struct {
	space  *Space
	origin string
	log    logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
}

var (
	_ ports.KeyValueStore  = (*Handle)(nil)
	_ ports.ChangeNotifier = (*Handle)(nil)
)

// Get returns a copy of the value stored under key.
func (h *Handle) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := h.check(ctx); err != nil {
		return nil, false, err
	}
	h.space.mu.RLock()
	defer h.space.mu.RUnlock()
	v, ok := h.space.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a copy of value under key.
func (h *Handle) Set(ctx context.Context, key string, value []byte) error {
	return h.Apply(ctx, ports.SetOp(key, value))
}

// Delete removes key.
func (h *Handle) Delete(ctx context.Context, key string) error {
	return h.Apply(ctx, ports.DeleteOp(key))
}

// Apply applies all operations under a single lock.
func (h *Handle) Apply(ctx context.Context, ops ...ports.Op) error {
	if err := h.check(ctx); err != nil {
		return err
	}
	h.space.mu.Lock()
	for _, op := range ops {
		if op.Delete {
			delete(h.space.data, op.Key)
			continue
		}
		h.space.data[op.Key] = append([]byte(nil), op.Value...)
	}
	notify := h.space.matching(h.origin, ops)
	h.space.mu.Unlock()

	// storage events are asynchronous, like in the browser: watchers may write back.
	if len(notify) > 0 {
		go func() {
			for _, n := range notify {
				n.fn(n.key)
			}
		}()
	}
	return nil
}

// Watch reports the keys with the given prefix written by other handles.
func (h *Handle) Watch(ctx context.Context, prefix string, fn func(key string)) (func(), error) {
	if err := h.check(ctx); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	h.space.mu.Lock()
	h.space.watchers[id] = &watcher{origin: h.origin, prefix: prefix, fn: fn}
	h.space.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			h.space.mu.Lock()
			delete(h.space.watchers, id)
			h.space.mu.Unlock()
		})
	}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			stop()
		}()
	}
	return stop, nil
}

// Close detaches the handle. Every later call fails with model.ErrStorageUnavailable.
func (h *Handle) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.space.mu.Lock()
	for id, w := range h.space.watchers {
		if w.origin == h.origin {
			delete(h.space.watchers, id)
		}
	}
	h.space.mu.Unlock()
	h.log.Debug("memory handle closed")
}

func (h *Handle) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return fmt.Errorf("memory handle %s closed: %w", h.origin, model.ErrStorageUnavailable)
	}
	return nil
}

type notification struct {
	key string
	fn  func(key string)
}

// matching must be called with mu held.
func (s *Space) matching(origin string, ops []ports.Op) []notification {
	var out []notification
	for _, w := range s.watchers {
		if w.origin == origin {
			continue
		}
		for _, op := range ops {
			if strings.HasPrefix(op.Key, w.prefix) {
				out = append(out, notification{key: op.Key, fn: w.fn})
			}
		}
	}
	return out
}

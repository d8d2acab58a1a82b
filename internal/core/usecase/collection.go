package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rbroggi/souqly/internal/core/broadcast"
	"github.com/rbroggi/souqly/internal/core/model"
	"github.com/rbroggi/souqly/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// CollectionArgs contains the mandatory arguments of every collection store.
type CollectionArgs struct {
	// Store is the persisted key space. A nil Store makes every operation a no-op.
	Store ports.KeyValueStore

	// Identity scopes the collection. The collection follows its changes.
	Identity ports.IdentityProvider
}

// collectionPolicy describes one kind of collection.
type collectionPolicy[T any, K comparable] struct {
	// name identifies the collection in logs and metrics.
	name string

	// prefix is prepended to the identity discriminator to build the collection key.
	prefix string

	// key extracts the natural key of an item.
	key func(T) K

	// merge folds guest items into the account items on login.
	merge func(user, guest []T) []T
}

// Collection is an ordered list of items, deduplicated by their natural key and scoped to the
// active identity. Every mutation is written through to the key space before it is published.
type Collection[T any, K comparable] struct {
	policy        collectionPolicy[T, K]
	store         ports.KeyValueStore
	log           logrus.FieldLogger
	recorder      ports.Recorder
	reloadTimeout time.Duration

	mu       sync.Mutex
	identity model.Identity
	items    []T

	// emit is acquired before mu is released so that publications follow mutation order.
	emit    sync.Mutex
	changes *broadcast.Channel[[]T]

	stops []func()
}

func newCollection[T any, K comparable](args CollectionArgs, policy collectionPolicy[T, K], optArgs []OptArgs) *Collection[T, K] {
	o := newOptions(optArgs)
	c := &Collection[T, K]{
		policy:        policy,
		store:         args.Store,
		log:           o.log.WithField("store", policy.name),
		recorder:      o.recorder,
		reloadTimeout: o.reloadTimeout,
		items:         []T{},
		changes:       broadcast.New([]T{}),
	}

	if notifier, ok := args.Store.(ports.ChangeNotifier); ok {
		stop, err := notifier.Watch(context.Background(), policy.prefix, c.onExternalChange)
		if err != nil {
			c.log.WithError(err).Warn("could not watch external changes, continuing without cross-tab sync")
		} else {
			c.stops = append(c.stops, stop)
		}
	}

	if args.Identity != nil {
		c.stops = append(c.stops, args.Identity.OnChange(c.switchTo))
	} else {
		c.switchTo(model.Anonymous)
	}
	return c
}

// Items returns a snapshot of the active collection.
func (c *Collection[T, K]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.items)
}

// Count returns the number of items of the active collection.
func (c *Collection[T, K]) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Contains reports whether an item with the natural key k is in the active collection.
func (c *Collection[T, K]) Contains(k K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexOf(c.items, k) >= 0
}

// Key returns the persisted key of the active collection.
func (c *Collection[T, K]) Key() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.CollectionKey(c.policy.prefix, c.identity)
}

// OnChange registers listener. It is invoked immediately with the current items and after every
// mutation or reload. Listeners must not modify the slice nor mutate the collection synchronously.
func (c *Collection[T, K]) OnChange(listener func([]T)) (unsubscribe func()) {
	return c.changes.Subscribe(listener)
}

// Remove removes the item with the natural key k. Removing an absent key is a no-op.
func (c *Collection[T, K]) Remove(ctx context.Context, k K) error {
	_, err := c.mutate(ctx, func(items []T) ([]T, bool) {
		idx := c.indexOf(items, k)
		if idx < 0 {
			return items, false
		}
		return append(items[:idx], items[idx+1:]...), true
	})
	return err
}

// Clear empties the active collection.
func (c *Collection[T, K]) Clear(ctx context.Context) error {
	_, err := c.mutate(ctx, func([]T) ([]T, bool) {
		return []T{}, true
	})
	return err
}

// Reload replaces the in-memory collection with the persisted state of the active key.
func (c *Collection[T, K]) Reload(ctx context.Context) {
	c.mu.Lock()
	c.items = c.load(ctx, model.CollectionKey(c.policy.prefix, c.identity))
	c.publishLocked()
}

// TransferGuestToUser merges the guest collection into the collection of userID and deletes the
// guest collection in a single atomic write, then reloads the active collection.
func (c *Collection[T, K]) TransferGuestToUser(ctx context.Context, userID string) error {
	if c.store == nil {
		return nil
	}
	c.mu.Lock()
	transferred, err := c.transferLocked(ctx, userID)
	if err != nil || !transferred {
		c.mu.Unlock()
		return err
	}
	c.items = c.load(ctx, model.CollectionKey(c.policy.prefix, c.identity))
	c.publishLocked()
	return nil
}

// transferLocked must be called with mu held.
func (c *Collection[T, K]) transferLocked(ctx context.Context, userID string) (bool, error) {
	guestKey := model.CollectionKey(c.policy.prefix, model.Anonymous)
	userKey := model.CollectionKey(c.policy.prefix, model.Authenticated(userID))
	log := c.log.WithField("user_id", userID)

	guest, ok, err := c.read(ctx, guestKey)
	if err != nil || !ok {
		return false, c.transferError(log, err)
	}
	user, _, err := c.read(ctx, userKey)
	if err != nil {
		return false, c.transferError(log, err)
	}

	merged := c.policy.merge(user, guest)
	data, err := encodeList(merged)
	if err != nil {
		return false, fmt.Errorf("error encoding %s: %w", c.policy.name, err)
	}
	if err := c.store.Apply(ctx, ports.SetOp(userKey, data), ports.DeleteOp(guestKey)); err != nil {
		return false, c.transferError(log, err)
	}
	c.recorder.Transferred(c.policy.name, len(guest))
	log.WithField("items", len(guest)).Debug("guest collection transferred")
	return true, nil
}

// Close stops following identity changes and external writes.
func (c *Collection[T, K]) Close() {
	c.mu.Lock()
	stops := c.stops
	c.stops = nil
	c.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
}

// mutate applies fn to a copy of the active items and, when fn reports a change, persists the
// result and publishes it. The in-memory state is untouched if the write fails.
func (c *Collection[T, K]) mutate(ctx context.Context, fn func(items []T) ([]T, bool)) (bool, error) {
	c.mu.Lock()
	if c.store == nil {
		c.mu.Unlock()
		return false, nil
	}
	next, changed := fn(clone(c.items))
	if !changed {
		c.mu.Unlock()
		return false, nil
	}
	data, err := encodeList(next)
	if err != nil {
		c.mu.Unlock()
		return false, fmt.Errorf("error encoding %s: %w", c.policy.name, err)
	}
	key := model.CollectionKey(c.policy.prefix, c.identity)
	if err := c.store.Set(ctx, key, data); err != nil {
		c.mu.Unlock()
		if errors.Is(err, model.ErrStorageUnavailable) {
			c.log.WithError(err).Debug("storage unavailable, mutation ignored")
			return false, nil
		}
		return false, fmt.Errorf("error saving %s: %w", c.policy.name, err)
	}
	c.recorder.Persisted(c.policy.name)
	c.items = next
	c.publishLocked()
	return true, nil
}

// publishLocked must be called with mu held. It releases mu.
func (c *Collection[T, K]) publishLocked() {
	snapshot := clone(c.items)
	c.emit.Lock()
	c.mu.Unlock()
	c.changes.Publish(snapshot)
	c.emit.Unlock()
}

func (c *Collection[T, K]) switchTo(identity model.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), c.reloadTimeout)
	defer cancel()

	c.mu.Lock()
	c.identity = identity
	c.items = c.load(ctx, model.CollectionKey(c.policy.prefix, identity))
	c.publishLocked()
}

// onExternalChange reloads when another handle wrote the active key.
func (c *Collection[T, K]) onExternalChange(key string) {
	if key != c.Key() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.reloadTimeout)
	defer cancel()
	c.Reload(ctx)
}

// load reads a collection for the in-memory mirror. Failures degrade to an empty collection.
func (c *Collection[T, K]) load(ctx context.Context, key string) []T {
	items, _, err := c.read(ctx, key)
	if err != nil {
		if !errors.Is(err, model.ErrStorageUnavailable) {
			c.log.WithError(err).WithField("key", key).Error("error loading collection")
		}
		return []T{}
	}
	return items
}

// read returns the persisted collection under key. Malformed data is logged and reported as an
// empty collection.
func (c *Collection[T, K]) read(ctx context.Context, key string) ([]T, bool, error) {
	if c.store == nil {
		return []T{}, false, nil
	}
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("error reading %s: %w", key, err)
	}
	if !ok {
		return []T{}, false, nil
	}
	items, err := decodeList[T](raw)
	if err != nil {
		c.recorder.Malformed(c.policy.name)
		c.log.WithError(err).WithField("key", key).Error("error parsing collection data")
		return []T{}, true, nil
	}
	return items, true, nil
}

func (c *Collection[T, K]) transferError(log logrus.FieldLogger, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrStorageUnavailable) {
		log.WithError(err).Debug("storage unavailable, transfer skipped")
		return nil
	}
	return fmt.Errorf("error transferring guest %s: %w", c.policy.name, err)
}

func (c *Collection[T, K]) indexOf(items []T, k K) int {
	for i, item := range items {
		if c.policy.key(item) == k {
			return i
		}
	}
	return -1
}

// keepFirst appends the guest items whose key is not already present.
func keepFirst[T any, K comparable](key func(T) K) func(user, guest []T) []T {
	return func(user, guest []T) []T {
		seen := make(map[K]struct{}, len(user)+len(guest))
		merged := clone(user)
		for _, item := range merged {
			seen[key(item)] = struct{}{}
		}
		for _, item := range guest {
			if _, ok := seen[key(item)]; ok {
				continue
			}
			seen[key(item)] = struct{}{}
			merged = append(merged, item)
		}
		return merged
	}
}

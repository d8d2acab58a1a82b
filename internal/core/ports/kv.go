package ports

import (
	"context"
)

// KeyValueStore is the port for the persisted key space shared by every store.
// Values are raw JSON documents.
type KeyValueStore interface {
	// Get returns the value stored under key. The boolean is false if the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set durably stores value under key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Apply applies all the operations atomically: either all of them are persisted or none is.
	Apply(ctx context.Context, ops ...Op) error
}

// ChangeNotifier is an optional capability of a KeyValueStore. It reports writes performed by
// other handles on the same key space, never the ones performed through the receiver itself.
type ChangeNotifier interface {
	// Watch invokes fn with every externally changed key starting with prefix until stop is called
	// or ctx is done. Delivery is best-effort.
	Watch(ctx context.Context, prefix string, fn func(key string)) (stop func(), err error)
}

// Op is a single operation of an atomic batch.
type Op struct {
	// Key is the key to write or delete.
	Key string

	// Value is the value to store. Ignored when Delete is true.
	Value []byte

	// Delete removes Key instead of writing it.
	Delete bool
}

// SetOp builds a write operation.
func SetOp(key string, value []byte) Op {
	return Op{Key: key, Value: value}
}

// DeleteOp builds a delete operation.
func DeleteOp(key string) Op {
	return Op{Key: key, Delete: true}
}

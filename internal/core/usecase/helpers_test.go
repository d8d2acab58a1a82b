package usecase

import (
	"context"
	"sync"

	"github.com/alexedwards/argon2id"
	"github.com/rbroggi/souqly/internal/core/model"
	"github.com/rbroggi/souqly/internal/core/ports"
)

// cheapHashParams keeps password hashing fast in tests.
var cheapHashParams = &argon2id.Params{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  8,
	KeyLength:   16,
}

// faultyStore wraps a store and fails the operations whose error is set.
type faultyStore struct {
	ports.KeyValueStore
	getErr   error
	setErr   error
	applyErr error
}

func (f *faultyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	return f.KeyValueStore.Get(ctx, key)
}

func (f *faultyStore) Set(ctx context.Context, key string, value []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.KeyValueStore.Set(ctx, key, value)
}

func (f *faultyStore) Apply(ctx context.Context, ops ...ports.Op) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	return f.KeyValueStore.Apply(ctx, ops...)
}

// spyRecorder counts the recorded measures.
type spyRecorder struct {
	mu          sync.Mutex
	persisted   map[string]int
	malformed   map[string]int
	transferred map[string]int
	events      []string
}

func newSpyRecorder() *spyRecorder {
	return &spyRecorder{
		persisted:   map[string]int{},
		malformed:   map[string]int{},
		transferred: map[string]int{},
	}
}

func (r *spyRecorder) Persisted(store string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persisted[store]++
}

func (r *spyRecorder) Malformed(store string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.malformed[store]++
}

func (r *spyRecorder) Transferred(store string, items int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transferred[store] += items
}

func (r *spyRecorder) AccountEvent(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind)
}

func (r *spyRecorder) persistedCount(store string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persisted[store]
}

// spyHandler collects the account events it receives.
type spyHandler struct {
	mu     sync.Mutex
	events []model.AccountEvent
	err    error
}

func (h *spyHandler) Handle(_ context.Context, event model.AccountEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *spyHandler) received() []model.AccountEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.AccountEvent(nil), h.events...)
}

// identityRecorder collects the identities published by an IdentityStore.
type identityRecorder struct {
	mu   sync.Mutex
	seen []model.Identity
}

func (r *identityRecorder) listen(identity model.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, identity)
}

func (r *identityRecorder) identities() []model.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Identity(nil), r.seen...)
}

func ptr[T any](v T) *T {
	return &v
}

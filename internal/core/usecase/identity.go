package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rbroggi/souqly/internal/core/broadcast"
	"github.com/rbroggi/souqly/internal/core/model"
	"github.com/rbroggi/souqly/internal/core/ports"
	"github.com/sirupsen/logrus"
)

const authFlagValue = "true"

// IdentityStoreArgs contains the mandatory arguments for the IdentityStore.
type IdentityStoreArgs struct {
	// Store is the persisted key space. A nil Store keeps the identity in memory only.
	Store ports.KeyValueStore
}

// IdentityStore owns the active identity, the root of keying for every collection store.
type IdentityStore struct {
	store ports.KeyValueStore
	log   logrus.FieldLogger

	mu      sync.RWMutex
	account *model.Account

	emit    sync.Mutex
	changes *broadcast.Channel[model.Identity]
}

// NewIdentityStore creates an IdentityStore initialized from the persisted current user, if any.
func NewIdentityStore(ctx context.Context, args IdentityStoreArgs, optArgs ...OptArgs) *IdentityStore {
	o := newOptions(optArgs)
	s := &IdentityStore{
		store: args.Store,
		log:   o.log.WithField("store", "identity"),
	}
	s.account = s.loadCurrentUser(ctx)
	s.changes = broadcast.New(s.identityOf(s.account))
	return s
}

// Current returns the active identity.
func (s *IdentityStore) Current() model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identityOf(s.account)
}

// CurrentAccount returns the snapshot of the active account. The boolean is false for guests.
func (s *IdentityStore) CurrentAccount() (model.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return model.Account{}, false
	}
	return *s.account, true
}

// IsAuthenticated reports whether the active identity is an account.
func (s *IdentityStore) IsAuthenticated() bool {
	return !s.Current().IsAnonymous()
}

// OnChange registers listener. It is invoked immediately with the active identity and then on
// every identity change, synchronously and in order.
func (s *IdentityStore) OnChange(listener func(model.Identity)) (unsubscribe func()) {
	return s.changes.Subscribe(listener)
}

// SetCurrentUser makes account the active identity and persists its snapshot along with the
// auth flag. Credentials are never part of the snapshot.
func (s *IdentityStore) SetCurrentUser(ctx context.Context, account model.Account) error {
	snapshot := account.Public()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("error encoding current user: %w", err)
	}
	if err := s.persist(ctx,
		ports.SetOp(model.CurrentUserKey, data),
		ports.SetOp(model.AuthFlagKey, []byte(authFlagValue)),
	); err != nil {
		return err
	}
	s.switchTo(&snapshot)
	return nil
}

// Logout switches to the anonymous identity and clears the persisted current user.
func (s *IdentityStore) Logout(ctx context.Context) error {
	if err := s.persist(ctx,
		ports.DeleteOp(model.CurrentUserKey),
		ports.DeleteOp(model.AuthFlagKey),
	); err != nil {
		return err
	}
	s.switchTo(nil)
	return nil
}

// Handle keeps the active identity consistent with account changes made elsewhere: deleting the
// active account logs out, updating it refreshes the snapshot. Events are not delivered in order,
// so updates no newer than the snapshot are dropped.
func (s *IdentityStore) Handle(ctx context.Context, event model.AccountEvent) error {
	current, ok := s.CurrentAccount()
	if !ok || event.AccountID() != current.ID {
		return nil
	}
	if event.After == nil {
		s.log.WithField("user_id", current.ID).Info("active account deleted, logging out")
		return s.Logout(ctx)
	}
	if !event.After.UpdatedAt.After(current.UpdatedAt) {
		s.log.
			WithField("user_id", current.ID).
			WithField("event_id", event.ID).
			Debug("ignoring account update not newer than the active snapshot")
		return nil
	}
	return s.SetCurrentUser(ctx, *event.After)
}

func (s *IdentityStore) switchTo(account *model.Account) {
	s.mu.Lock()
	s.account = account
	identity := s.identityOf(account)
	s.emit.Lock()
	s.mu.Unlock()

	s.changes.Publish(identity)
	s.emit.Unlock()
}

func (s *IdentityStore) persist(ctx context.Context, ops ...ports.Op) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Apply(ctx, ops...); err != nil {
		if errors.Is(err, model.ErrStorageUnavailable) {
			s.log.WithError(err).Debug("storage unavailable, identity kept in memory only")
			return nil
		}
		return fmt.Errorf("error persisting current user: %w", err)
	}
	return nil
}

func (s *IdentityStore) loadCurrentUser(ctx context.Context) *model.Account {
	if s.store == nil {
		return nil
	}
	raw, ok, err := s.store.Get(ctx, model.CurrentUserKey)
	if err != nil {
		s.log.WithError(err).Warn("could not read current user, starting as guest")
		return nil
	}
	if !ok {
		return nil
	}
	account := new(model.Account)
	if err := json.Unmarshal(raw, account); err != nil || account.ID == "" {
		s.log.WithError(err).Error("error parsing current user data, starting as guest")
		return nil
	}
	return account
}

func (s *IdentityStore) identityOf(account *model.Account) model.Identity {
	if account == nil {
		return model.Anonymous
	}
	return model.Authenticated(account.ID)
}

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rbroggi/souqly/internal/core/model"
	"github.com/rbroggi/souqly/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// AccountRegistryArgs contains the mandatory arguments for the AccountRegistry.
type AccountRegistryArgs struct {
	// Store is the persisted key space.
	Store ports.KeyValueStore

	// Identity is switched on login and kept consistent on updates and deletions.
	Identity activeIdentity

	// Events receives every account change. Optional.
	Events ports.AccountEventHandler
}

// NewAccountRegistry creates a new AccountRegistry.
func NewAccountRegistry(args AccountRegistryArgs, optArgs ...OptArgs) *AccountRegistry {
	o := newOptions(optArgs)
	return &AccountRegistry{
		store:      args.Store,
		identity:   args.Identity,
		events:     args.Events,
		validate:   newValidator(o.nowFunc),
		log:        o.log.WithField("store", "users"),
		recorder:   o.recorder,
		nowFunc:    o.nowFunc,
		hashParams: o.hashParams,
	}
}

// AccountRegistry gathers the functionality around the account lifecycle. Emails are unique.
type AccountRegistry struct {
	store      ports.KeyValueStore
	identity   activeIdentity
	events     ports.AccountEventHandler
	validate   *validator.Validate
	log        logrus.FieldLogger
	recorder   ports.Recorder
	nowFunc    func() time.Time
	hashParams *argon2id.Params

	// mu serializes read-modify-write cycles of the users key.
	mu sync.Mutex
}

// Register creates an account. It returns model.ErrDuplicateEmail if the email is taken.
func (r *AccountRegistry) Register(ctx context.Context, args model.RegisterArgs) (*model.Account, error) {
	if err := r.validate.StructCtx(ctx, args); err != nil {
		return nil, translateValidationError(err)
	}

	// CreateHash returns a Argon2id hash of a plain-text password using the
	// provided algorithm parameters. The returned hash follows the format used
	// by the Argon2 reference C implementation and looks like this:
	// $argon2id$v=19$m=65536,t=3,p=2$c29tZXNhbHQ$RdescudvJCsgt3ub+b+dWRWJTmaaJObG
	hash, err := argon2id.CreateHash(args.Password, r.hashParams)
	if err != nil {
		return nil, fmt.Errorf("error creating password hash: %w", err)
	}

	account, err := r.insert(ctx, args, hash)
	if err != nil {
		return nil, err
	}

	// events may block on the network, they are emitted outside the lock
	r.emit(ctx, "registered", nil, &account)
	public := account.Public()
	return &public, nil
}

func (r *AccountRegistry) insert(ctx context.Context, args model.RegisterArgs, hash string) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.loadForWrite(ctx)
	if err != nil {
		return model.Account{}, err
	}
	if indexByEmail(accounts, args.Email, "") >= 0 {
		return model.Account{}, model.ErrDuplicateEmail
	}

	now := r.nowFunc()
	account := model.Account{
		ID:           uuid.NewString(),
		FirstName:    args.FirstName,
		LastName:     args.LastName,
		Email:        args.Email,
		Phone:        args.Phone,
		Country:      args.Country,
		City:         args.City,
		Gender:       args.Gender,
		DateOfBirth:  args.DateOfBirth,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	accounts = append(accounts, account)

	profile, err := json.Marshal(model.NewProfile(account))
	if err != nil {
		return model.Account{}, fmt.Errorf("error encoding profile: %w", err)
	}
	if err := r.save(ctx, accounts, ports.SetOp(model.ProfileKey(account.ID), profile)); err != nil {
		return model.Account{}, err
	}
	return account, nil
}

// Login makes the account matching email and password the active identity. It returns
// model.ErrInvalidCredentials when no account matches.
func (r *AccountRegistry) Login(ctx context.Context, email, password string) (*model.Account, error) {
	accounts, err := r.loadForRead(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexByEmail(accounts, email, "")
	if idx < 0 {
		return nil, model.ErrInvalidCredentials
	}
	account := accounts[idx]
	match, err := argon2id.ComparePasswordAndHash(password, account.PasswordHash)
	if err != nil {
		r.log.WithError(err).WithField("user_id", account.ID).Warn("stored password hash is unusable")
		return nil, model.ErrInvalidCredentials
	}
	if !match {
		return nil, model.ErrInvalidCredentials
	}

	if r.identity != nil {
		if err := r.identity.SetCurrentUser(ctx, account); err != nil {
			return nil, fmt.Errorf("error switching identity: %w", err)
		}
	}
	public := account.Public()
	return &public, nil
}

// UpdateProfile applies a partial update. It returns model.ErrNotFound if the ID does not
// correspond to an existing account. The id and creation time never change.
func (r *AccountRegistry) UpdateProfile(ctx context.Context, id string, args model.UpdateProfileArgs) (*model.Account, error) {
	if err := r.validate.StructCtx(ctx, args); err != nil {
		return nil, translateValidationError(err)
	}

	var hash string
	if args.Password != nil {
		var err error
		if hash, err = argon2id.CreateHash(*args.Password, r.hashParams); err != nil {
			return nil, fmt.Errorf("error creating password hash: %w", err)
		}
	}

	before, updated, err := r.update(ctx, id, args, hash)
	if err != nil {
		return nil, err
	}

	r.emit(ctx, "updated", &before, &updated)
	public := updated.Public()
	return &public, nil
}

func (r *AccountRegistry) update(ctx context.Context, id string, args model.UpdateProfileArgs, hash string) (before, updated model.Account, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.loadForWrite(ctx)
	if err != nil {
		return before, updated, err
	}
	idx := indexByID(accounts, id)
	if idx < 0 {
		return before, updated, model.ErrNotFound
	}
	if args.Email != nil && indexByEmail(accounts, *args.Email, id) >= 0 {
		return before, updated, model.ErrDuplicateEmail
	}

	before = accounts[idx]
	updated = applyUpdate(before, args)
	if hash != "" {
		updated.PasswordHash = hash
	}
	updated.UpdatedAt = r.nowFunc()
	accounts[idx] = updated

	if err := r.save(ctx, accounts); err != nil {
		return model.Account{}, model.Account{}, err
	}
	if r.identity != nil && r.identity.Current().UserID == id {
		if err := r.identity.SetCurrentUser(ctx, updated); err != nil {
			r.log.WithError(err).WithField("user_id", id).Error("error refreshing active identity")
		}
	}
	return before, updated, nil
}

// DeleteAccount removes the account and its profile. If it is the active identity, it logs out.
// The boolean is false if the account does not exist.
func (r *AccountRegistry) DeleteAccount(ctx context.Context, id string) (bool, error) {
	before, found, err := r.remove(ctx, id)
	if err != nil || !found {
		return false, err
	}

	r.emit(ctx, "deleted", &before, nil)
	return true, nil
}

func (r *AccountRegistry) remove(ctx context.Context, id string) (model.Account, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts, err := r.loadForWrite(ctx)
	if err != nil {
		return model.Account{}, false, err
	}
	idx := indexByID(accounts, id)
	if idx < 0 {
		return model.Account{}, false, nil
	}
	before := accounts[idx]
	accounts = append(accounts[:idx], accounts[idx+1:]...)

	if err := r.save(ctx, accounts, ports.DeleteOp(model.ProfileKey(id))); err != nil {
		return model.Account{}, false, err
	}
	if r.identity != nil && r.identity.Current().UserID == id {
		if err := r.identity.Logout(ctx); err != nil {
			r.log.WithError(err).WithField("user_id", id).Error("error logging out deleted account")
		}
	}
	return before, true, nil
}

// ByID returns the account with the given id or model.ErrNotFound.
func (r *AccountRegistry) ByID(ctx context.Context, id string) (*model.Account, error) {
	accounts, err := r.loadForRead(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexByID(accounts, id)
	if idx < 0 {
		return nil, model.ErrNotFound
	}
	public := accounts[idx].Public()
	return &public, nil
}

// All returns every account in registration order.
func (r *AccountRegistry) All(ctx context.Context) ([]model.Account, error) {
	accounts, err := r.loadForRead(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Account, len(accounts))
	for i, a := range accounts {
		out[i] = a.Public()
	}
	return out, nil
}

// loadForRead treats malformed data as an empty registry.
func (r *AccountRegistry) loadForRead(ctx context.Context) ([]model.Account, error) {
	accounts, err := r.load(ctx)
	if errors.Is(err, model.ErrMalformedData) {
		r.recorder.Malformed("users")
		r.log.WithError(err).Error("error parsing users data")
		return []model.Account{}, nil
	}
	return accounts, err
}

// loadForWrite refuses to overwrite malformed data.
func (r *AccountRegistry) loadForWrite(ctx context.Context) ([]model.Account, error) {
	accounts, err := r.load(ctx)
	if errors.Is(err, model.ErrMalformedData) {
		r.recorder.Malformed("users")
		r.log.WithError(err).Error("error parsing users data")
	}
	return accounts, err
}

func (r *AccountRegistry) load(ctx context.Context) ([]model.Account, error) {
	if r.store == nil {
		return nil, model.ErrStorageUnavailable
	}
	raw, ok, err := r.store.Get(ctx, model.UsersKey)
	if err != nil {
		return nil, fmt.Errorf("error reading users: %w", err)
	}
	if !ok {
		return []model.Account{}, nil
	}
	return decodeList[model.Account](raw)
}

func (r *AccountRegistry) save(ctx context.Context, accounts []model.Account, extra ...ports.Op) error {
	data, err := encodeList(accounts)
	if err != nil {
		return fmt.Errorf("error encoding users: %w", err)
	}
	ops := append([]ports.Op{ports.SetOp(model.UsersKey, data)}, extra...)
	if err := r.store.Apply(ctx, ops...); err != nil {
		return fmt.Errorf("error saving users: %w", err)
	}
	r.recorder.Persisted("users")
	return nil
}

func (r *AccountRegistry) emit(ctx context.Context, kind string, before, after *model.Account) {
	r.recorder.AccountEvent(kind)
	if r.events == nil {
		return
	}
	event := model.NewAccountEvent(before, after)
	if err := r.events.Handle(ctx, event); err != nil {
		r.log.WithError(err).WithField("event_id", event.ID).Error("error handling account event")
	}
}

func applyUpdate(account model.Account, args model.UpdateProfileArgs) model.Account {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&account.FirstName, args.FirstName)
	set(&account.LastName, args.LastName)
	set(&account.Email, args.Email)
	set(&account.Phone, args.Phone)
	set(&account.Country, args.Country)
	set(&account.City, args.City)
	set(&account.Gender, args.Gender)
	set(&account.DateOfBirth, args.DateOfBirth)
	return account
}

func indexByID(accounts []model.Account, id string) int {
	for i, a := range accounts {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// indexByEmail finds the account with email, ignoring the account with id except.
func indexByEmail(accounts []model.Account, email, except string) int {
	for i, a := range accounts {
		if a.Email == email && a.ID != except {
			return i
		}
	}
	return -1
}

// activeIdentity is the part of the IdentityStore the registry drives.
type activeIdentity interface {
	// Current returns the active identity.
	Current() model.Identity

	// SetCurrentUser makes the account the active identity.
	SetCurrentUser(ctx context.Context, account model.Account) error

	// Logout switches to the anonymous identity.
	Logout(ctx context.Context) error
}

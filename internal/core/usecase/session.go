package usecase

import (
	"context"
	"fmt"

	"github.com/rbroggi/souqly/internal/core/model"
	"github.com/sirupsen/logrus"
)

// GuestTransferer moves the guest data of a store into an account.
type GuestTransferer interface {
	// TransferGuestToUser merges the guest data into the data of userID and removes the guest data.
	TransferGuestToUser(ctx context.Context, userID string) error
}

// SessionArgs contains the mandatory arguments for the Session.
type SessionArgs struct {
	// Registry holds the accounts.
	Registry *AccountRegistry

	// Identity is the active identity.
	Identity *IdentityStore

	// Transferers receive the guest data on sign-in, in order.
	Transferers []GuestTransferer
}

// NewSession creates a new Session.
func NewSession(args SessionArgs, optArgs ...OptArgs) *Session {
	o := newOptions(optArgs)
	return &Session{
		registry:    args.Registry,
		identity:    args.Identity,
		transferers: args.Transferers,
		log:         o.log.WithField("component", "session"),
	}
}

// Session drives the sign-in flows: after a successful sign-in the guest cart, favorites and
// favorite departments are merged into the account.
type Session struct {
	registry    *AccountRegistry
	identity    *IdentityStore
	transferers []GuestTransferer
	log         logrus.FieldLogger
}

// Login signs the account in and transfers the guest data to it.
func (s *Session) Login(ctx context.Context, email, password string) (*model.Account, error) {
	account, err := s.registry.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.transfer(ctx, account.ID)
	return account, nil
}

// Register creates the account, signs it in and transfers the guest data to it.
func (s *Session) Register(ctx context.Context, args model.RegisterArgs) (*model.Account, error) {
	account, err := s.registry.Register(ctx, args)
	if err != nil {
		return nil, err
	}
	if err := s.identity.SetCurrentUser(ctx, *account); err != nil {
		return nil, fmt.Errorf("error signing in registered account: %w", err)
	}
	s.transfer(ctx, account.ID)
	return account, nil
}

// Logout switches to the guest. The account collections stay persisted.
func (s *Session) Logout(ctx context.Context) error {
	return s.identity.Logout(ctx)
}

// DeleteAccount deletes the active account and logs out. It returns model.ErrNotFound for guests.
func (s *Session) DeleteAccount(ctx context.Context) error {
	current := s.identity.Current()
	if current.IsAnonymous() {
		return model.ErrNotFound
	}
	deleted, err := s.registry.DeleteAccount(ctx, current.UserID)
	if err != nil {
		return err
	}
	if !deleted {
		// the snapshot outlived its account
		return s.identity.Logout(ctx)
	}
	return nil
}

// transfer failures leave the guest data in place and do not undo the sign-in.
func (s *Session) transfer(ctx context.Context, userID string) {
	for _, t := range s.transferers {
		if err := t.TransferGuestToUser(ctx, userID); err != nil {
			s.log.WithError(err).WithField("user_id", userID).Error("error transferring guest data")
		}
	}
}

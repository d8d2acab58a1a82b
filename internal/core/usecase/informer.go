package usecase

import (
	"context"
	"fmt"

	"github.com/rbroggi/souqly/internal/core/model"
	"github.com/rbroggi/souqly/internal/core/ports"
)

// NewInformer builds a new informer.
func NewInformer(sender ports.Sender) *Informer {
	return &Informer{sender: sender}
}

// Informer adapts registry events to a public-facing event. It publicly 'informs' about account changes.
type Informer struct {
	sender ports.Sender
}

// Handle strips credentials from the event and sends it, unless nothing public changed.
func (i *Informer) Handle(ctx context.Context, event model.AccountEvent) error {
	// 1. we don't want to publish password hashes.
	event.Before = public(event.Before)
	event.After = public(event.After)

	// 2. this happens if there were only changes in password hash
	if accountsAreEqual(event.Before, event.After) {
		return nil
	}

	if err := i.sender.Send(ctx, event); err != nil {
		return fmt.Errorf("error sending account event ID [%s]: %w", event.ID, err)
	}

	return nil
}

// public copies account without credentials so the caller's event is left untouched.
func public(account *model.Account) *model.Account {
	if account == nil {
		return nil
	}
	p := account.Public()
	return &p
}

func accountsAreEqual(before *model.Account, after *model.Account) bool {
	if before == nil && after == nil {
		return true
	}
	if before == nil || after == nil {
		return false
	}
	b, a := *before, *after
	// a password change only touches the hash and the update time
	b.UpdatedAt = a.UpdatedAt
	return b == a
}

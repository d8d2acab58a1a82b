package model

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a registered shopper.
type Account struct {
	// ID unique identifier of the account.
	ID string `json:"id"`

	// FirstName is the account holder first name.
	FirstName string `json:"firstName"`

	// LastName is the account holder last name.
	LastName string `json:"lastName"`

	// Email is unique across accounts, compared case-sensitively.
	Email string `json:"email"`

	// Phone is the contact phone number.
	Phone string `json:"phone"`

	// Country is the account holder country
	Country string `json:"country"`

	// City is the account holder city
	City string `json:"city"`

	// Gender is the account holder gender
	Gender string `json:"gender"`

	// DateOfBirth is formatted as 2006-01-02.
	DateOfBirth string `json:"dob"`

	// PasswordHash contains the argon2id password hash.
	PasswordHash string `json:"passwordHash,omitempty"`

	// CreatedAt is the time at which the account was registered.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the time at which the account was last updated
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Public returns a copy of the account without credentials.
func (a Account) Public() Account {
	a.PasswordHash = ""
	return a
}

// Identity is the active shopper. The zero value is the anonymous guest.
type Identity struct {
	// UserID is the id of the authenticated account. Empty for guests.
	UserID string
}

// Anonymous is the guest identity.
var Anonymous = Identity{}

// Authenticated returns the identity of the given account id.
func Authenticated(userID string) Identity {
	return Identity{UserID: userID}
}

// IsAnonymous reports whether the identity is the guest.
func (i Identity) IsAnonymous() bool {
	return i.UserID == ""
}

// Discriminator is the suffix used in collection keys: "guest" or the account id.
func (i Identity) Discriminator() string {
	if i.IsAnonymous() {
		return GuestDiscriminator
	}
	return i.UserID
}

func (i Identity) String() string {
	return i.Discriminator()
}

// AccountEvent collects an account change. It can represent creation, update and deletion of an account.
type AccountEvent struct {
	// ID is the event id.
	ID string

	// Before is the account state before the event. It will be nil in case of registrations.
	Before *Account

	// After is the account state after the event. It will be nil in case of deletions.
	After *Account
}

// NewAccountEvent builds an event with a fresh id. Accounts are copied.
func NewAccountEvent(before, after *Account) AccountEvent {
	event := AccountEvent{ID: uuid.NewString()}
	if before != nil {
		b := *before
		event.Before = &b
	}
	if after != nil {
		a := *after
		event.After = &a
	}
	return event
}

// AccountID returns the id of the account the event is about.
func (e AccountEvent) AccountID() string {
	if e.After != nil {
		return e.After.ID
	}
	if e.Before != nil {
		return e.Before.ID
	}
	return ""
}

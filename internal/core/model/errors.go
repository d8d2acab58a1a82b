package model

import "errors"

var (
	// ErrNotFound is returned when an entity is required to exist and does not.
	ErrNotFound = errors.New("entity was not found")

	// ErrDuplicateEmail is returned when an account with the same email is already registered.
	ErrDuplicateEmail = errors.New("an account with this email already exists")

	// ErrInvalidCredentials is returned when no account matches an email and password pair.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrWeakPassword is returned when a password does not meet the strength rules.
	ErrWeakPassword = errors.New("password must be 8+ chars, include uppercase, number, and special char")

	// ErrPasswordMismatch is returned when the password confirmation differs from the password.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrInvalidArgument is returned when an input field fails validation.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMalformedData is returned when a persisted value cannot be decoded.
	ErrMalformedData = errors.New("malformed persisted data")

	// ErrStorageUnavailable is returned by backends that are absent or closed.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

package errors

import "errors"

var (
	// ErrNotFound is returned when the account does not exist
	ErrNotFound = errors.New("account not found")

	// ErrAlreadyExists is returned when creating an account with a taken id or phone
	ErrAlreadyExists = errors.New("account already exists")

	// ErrStatusConflict is returned by conditional updates when the account
	// was not in the expected status (lost a race with another writer)
	ErrStatusConflict = errors.New("account status conflict")

	// ErrLockMismatch is returned when a lock operation presents an owner
	// token that does not match the stored lock owner
	ErrLockMismatch = errors.New("lock owner mismatch")
)

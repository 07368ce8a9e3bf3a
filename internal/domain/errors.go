package domain

import "errors"

var (
	// ErrNoAvailableAccount is returned when no eligible, unlocked account
	// exists for the requesting user. Recoverable by caller retry/backoff.
	ErrNoAvailableAccount = errors.New("no available account")

	// ErrLockOwnership is returned when a release presents a token that does
	// not match the current lock owner (stale lease or caller bug)
	ErrLockOwnership = errors.New("lock token does not match current owner")

	// ErrAccountNotFound is returned when the account does not exist or does
	// not belong to the requesting user
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountDisabled is returned for operations against a terminally
	// disabled account
	ErrAccountDisabled = errors.New("account is disabled")

	// ErrInfrastructure wraps store/lock-provider connectivity failures that
	// survived bounded retries
	ErrInfrastructure = errors.New("infrastructure error")
)

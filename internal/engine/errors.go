package engine

import "errors"

var (
	// ErrNotOwner is returned when an operation requires the acting user to
	// own an account and they do not.
	ErrNotOwner = errors.New("account does not belong to the user")

	// ErrInvalidRequestState is returned when a transfer request is not in
	// the lifecycle state the operation requires.
	ErrInvalidRequestState = errors.New("request is not in the required state")

	// ErrResourceBusy is returned when the accounts involved could not be
	// locked within the bounded wait. The operation had no effect and can be
	// retried.
	ErrResourceBusy = errors.New("accounts are busy, retry later")
)

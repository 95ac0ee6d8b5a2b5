package portfolio

import "errors"

// Sentinel errors for ledger operations. Handlers map these to HTTP statuses
// with errors.Is; all of them are detected before any mutation, so a failed
// operation always leaves the ledger untouched.
var (
	ErrInvalidInput         = errors.New("transaction values must be positive")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrPositionNotFound     = errors.New("no position held for symbol")
	ErrInsufficientQuantity = errors.New("insufficient stock quantity to sell")
	ErrInvalidCommission    = errors.New("commission cannot be greater than sale value")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrUserNotFound         = errors.New("user not found")
)

// ErrVersionConflict reports that a ledger was modified by another request
// between Find and Save. Callers reload and reapply the mutation.
var ErrVersionConflict = errors.New("ledger was modified concurrently")

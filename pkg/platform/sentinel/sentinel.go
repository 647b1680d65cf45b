package sentinel

import "errors"

// Sentinel errors for substrate facts. Stores return these (optionally wrapped)
// so the registry service can translate them into domain errors.
//
//   - ErrNotFound: record or account does not exist
//   - ErrAlreadyExists: create-if-absent found a live record under the key
//   - ErrInsufficientFunds: a ledger debit exceeds the account balance
//   - ErrOverflow: a ledger credit would exceed the uint64 unit range
//   - ErrUnavailable: substrate temporarily unavailable
//
// For validation errors (bad input, length limits), use pkg/domain-errors directly.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOverflow          = errors.New("balance overflow")
	ErrUnavailable       = errors.New("unavailable")
)

package services

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrInsufficientFunds: balance below the requested debit; nothing changed.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrUnknownItem: the catalog has no item with that id.
	ErrUnknownItem = errors.New("unknown catalog item")
	// ErrAccountNotFound: the user has never been seen.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidAmount: credit/debit amounts must be positive.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrNotEntitled: the user has not purchased the item.
	ErrNotEntitled = errors.New("item not purchased")
	// ErrInvalidTransition: the session event is not defined.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrStoreUnavailable: timeout, lost connection or a transaction conflict
	// that outlived its retries. The mutation was not applied; retry later.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// transientError marks a store error worth retrying and is reported as
// ErrStoreUnavailable once retries run out.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return "store unavailable: " + e.err.Error() }
func (e *transientError) Unwrap() []error { return []error{ErrStoreUnavailable, e.err} }

// Postgres SQLSTATEs that mean "try the whole transaction again".
var transientPgCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57P01": true, // admin_shutdown
	"08000": true, // connection_exception
	"08003": true, // connection_does_not_exist
	"08006": true, // connection_failure
}

// classifyStoreError wraps transient failures so callers can errors.Is them
// against ErrStoreUnavailable. Domain sentinels pass through untouched.
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}
	var te *transientError
	if errors.As(err, &te) {
		return err
	}
	if isTransient(err) {
		return &transientError{err: err}
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return transientPgCodes[pgErr.Code]
	}
	return false
}

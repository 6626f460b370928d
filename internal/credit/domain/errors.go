package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrAccountNotFound = errors.New("account_not_found")
	ErrAccountClosed   = errors.New("account_closed")
	ErrInvalidIdentity = errors.New("invalid_identity")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidCurrency = errors.New("invalid_currency")
)

// AccountSuspendedError rejects mutations on a suspended account.
type AccountSuspendedError struct {
	Reason string
}

func (e *AccountSuspendedError) Error() string {
	if e.Reason == "" {
		return "account_suspended"
	}
	return "account_suspended: " + e.Reason
}

// InsufficientCreditsError reports the paid balance against the amount
// required after both free tiers were exhausted.
type InsufficientCreditsError struct {
	Balance  int64
	Required int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient_credits: balance %d, required %d", e.Balance, e.Required)
}

// IdempotencyConflictError carries the id of the row already written for the
// same (account, idempotency key). Callers treat this as success, not error.
type IdempotencyConflictError struct {
	ExistingID snowflake.ID
}

func (e *IdempotencyConflictError) Error() string {
	return "idempotency_conflict: existing " + e.ExistingID.String()
}

// DataIntegrityError marks a broken invariant (currency mismatch, balance
// arithmetic). Fatal for the transaction.
type DataIntegrityError struct {
	Message string
}

func (e *DataIntegrityError) Error() string {
	return "data_integrity: " + e.Message
}

// WriteVerificationError marks a post-write read-back that did not match the
// computed state. Fatal for the transaction.
type WriteVerificationError struct {
	Message string
}

func (e *WriteVerificationError) Error() string {
	return "write_verification: " + e.Message
}

// ConcurrencyError marks lock contention or a lock-wait timeout. Safe to
// retry with the same idempotency key.
type ConcurrencyError struct {
	Resource string
}

func (e *ConcurrencyError) Error() string {
	return "concurrency: " + e.Resource
}

/*
errors.go - Centralized error types for the supply engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify with errors.Is against the sentinels and errors.As
  against the structured types for details.

ERROR CATEGORIES:
  1. Validation      - malformed transaction, bad date, bad quantity
  2. Data integrity  - the ledger folds to an impossible state
  3. Business        - out of stock, insufficient funds, unknown item
  4. Store           - persistence failures

HANDLING:
  Validation, not-found and business errors are expected outcomes and
  become typed order rejections. Data-integrity and store errors are hard
  failures and are always returned to the caller.

SEE ALSO:
  - ledger.go: Validation on append
  - projection.go: Data-integrity detection
  - fulfillment/orchestrator.go: Rejection mapping
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input (bad type, bad date).
	ErrValidation = errors.New("validation failed")

	// ErrDataIntegrity is returned when a fold yields an impossible value,
	// e.g. more units sold than ever stocked.
	ErrDataIntegrity = errors.New("ledger data integrity violation")

	// ErrOutOfStock is returned when projected stock cannot cover an order.
	ErrOutOfStock = errors.New("out of stock")

	// ErrInsufficientFunds is returned when projected cash cannot cover a charge.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNotFound is returned when a catalog item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStore is returned when the underlying persistence layer fails.
	ErrStore = errors.New("store failure")

	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidDateError is returned for unparseable dates. There is no fallback
// to the current day.
type InvalidDateError struct {
	Input string
	Err   error
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", e.Input)
}

func (e *InvalidDateError) Unwrap() []error { return []error{ErrValidation, e.Err} }

// DataIntegrityError reports a negative stock fold.
type DataIntegrityError struct {
	ItemName string
	AsOf     Date
	Stock    int64
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("negative stock %d for %q as of %s", e.Stock, e.ItemName, e.AsOf)
}

func (e *DataIntegrityError) Unwrap() error { return ErrDataIntegrity }

// OutOfStockError provides details about a stock shortage.
type OutOfStockError struct {
	ItemName  string
	Available int64
	Requested int64
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("out of stock: %q has %d units, requested %d",
		e.ItemName, e.Available, e.Requested)
}

func (e *OutOfStockError) Unwrap() error { return ErrOutOfStock }

// InsufficientFundsError provides details about a cash shortage.
type InsufficientFundsError struct {
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, required %s",
		e.Available.StringFixed(2), e.Required.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// NotFoundError reports an unknown catalog item.
type NotFoundError struct {
	ItemName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("item %q not found in catalog", e.ItemName)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StoreError wraps a persistence failure. Both ErrStore and the underlying
// driver error are reachable with errors.Is.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStore, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsRejection returns true for expected business outcomes that end an order
// without touching the ledger.
func IsRejection(err error) bool {
	return IsClientError(err) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrInsufficientFunds)
}

// IsNotFound returns true if the error indicates a missing item.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

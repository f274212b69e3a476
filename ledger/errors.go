/*
errors.go - Centralized error taxonomy for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The trading package and the API layer match on these with errors.Is /
  errors.As; the structured variants carry the context a caller needs to
  render a useful message.

ERROR CATEGORIES:
  1. Validation errors - deterministic, checked before any write
     (not found, insufficient funds/inventory, invalid transition)
  2. Storage errors    - transport/commit failures, may occur mid-sequence
     and are guaranteed not to leave partial state (see store.go)

USAGE:
  if errors.Is(err, ledger.ErrInsufficientFunds) { ... }

  var nf *ledger.NotFoundError
  if errors.As(err, &nf) { log.Printf("missing %s %s", nf.Kind, nf.ID) }
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
	// ErrNotFound is returned when a referenced item, partner, order,
	// purchase or sale is missing or soft-deleted.
	ErrNotFound = errors.New("record not found")

	// ErrInsufficientFunds is returned when a purchase would drive the
	// business's net cash negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientInventory is returned when a sale would drive the
	// item's net stock negative.
	ErrInsufficientInventory = errors.New("insufficient inventory")

	// ErrInvalidTransition is returned for an order status change outside
	// the transition table.
	ErrInvalidTransition = errors.New("invalid order transition")

	// ErrAlreadyReversed is returned when reversing a purchase or sale
	// that has already been tombstoned.
	ErrAlreadyReversed = errors.New("record already reversed")

	// ErrInvalidInput is returned for malformed operation input
	// (non-positive quantity, negative price, missing partner).
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorage is returned when the store is unreachable or a commit fails.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies which record was missing.
type NotFoundError struct {
	Kind string // "item", "partner", "order", "purchase", "sale"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientFundsError reports the cash shortfall of a rejected purchase.
type InsufficientFundsError struct {
	BusinessID BusinessID
	Available  decimal.Decimal
	Required   decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for business %s: available %s, required %s",
		e.BusinessID, e.Available, e.Required)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// InsufficientInventoryError reports the stock shortfall of a rejected sale.
type InsufficientInventoryError struct {
	ItemID    ItemID
	Available int64
	Requested int64
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for item %s: available %d, requested %d",
		e.ItemID, e.Available, e.Requested)
}

func (e *InsufficientInventoryError) Unwrap() error { return ErrInsufficientInventory }

// InvalidTransitionError reports a rejected order status change.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order transition: %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// StorageError wraps a store-level failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is a deterministic validation
// failure rather than an infrastructure one.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInsufficientInventory) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrAlreadyReversed) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

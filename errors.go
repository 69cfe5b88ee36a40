package stockledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("stockledger: not found")
	ErrInvalidInput = errors.New("stockledger: invalid input")
	ErrForbidden    = errors.New("stockledger: forbidden")

	// Stock errors
	ErrInsufficientStock = errors.New("stockledger: insufficient stock")
	ErrUnknownKind       = errors.New("stockledger: unknown collection kind")

	// Store errors
	ErrConflict     = errors.New("stockledger: version conflict")
	ErrStore        = errors.New("stockledger: store failure")
	ErrStoreClosed  = errors.New("stockledger: store is closed")
	ErrLockNotHeld  = errors.New("stockledger: item lock not obtained")
	ErrMergePartial = errors.New("stockledger: merge partially applied")
)

// ValidationError reports a missing or malformed input field. Message is
// shown to staff verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrInvalidInput) match any ValidationError.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NotPermittedError reports a role-based denial.
type NotPermittedError struct {
	Role    string
	Action  string
	Branch  string
	Message string
}

func (e NotPermittedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Branch != "" {
		return fmt.Sprintf("%s is not allowed to %s in %s", e.Role, e.Action, e.Branch)
	}
	return fmt.Sprintf("%s is not allowed to %s", e.Role, e.Action)
}

// Is lets errors.Is(err, ErrForbidden) match any NotPermittedError.
func (e NotPermittedError) Is(target error) bool {
	return target == ErrForbidden
}

// InsufficientStockError rejects a consumption larger than what is on hand.
type InsufficientStockError struct {
	Description string
	Attempted   decimal.Decimal
	Available   decimal.Decimal
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("Cannot consume %s. Available stock for %q is %s.",
		e.Attempted.String(), e.Description, e.Available.String())
}

// Is lets errors.Is(err, ErrInsufficientStock) match.
func (e InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// StoreError wraps a backing-store failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("stockledger: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStore) match any StoreError.
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

// storeErr wraps err unless it is nil or already one of ours.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation returns true for bad input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsForbidden returns true for role-based denials.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrLockNotHeld)
}

package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pavkata12/app/internal/models"
)

// NotFoundError indicates that a referenced computer, tariff, session or setting does not exist
type NotFoundError struct {
	Entity string
	ID     interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

// IsNotFoundError checks if an error is a NotFoundError
func IsNotFoundError(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// ConflictError indicates that a computer already has an active session
type ConflictError struct {
	ComputerID      int64
	ActiveSessionID int64 // zero when the conflicting session was detected by the index
}

func (e *ConflictError) Error() string {
	if e.ActiveSessionID != 0 {
		return fmt.Sprintf("computer %d already has active session %d", e.ComputerID, e.ActiveSessionID)
	}
	return fmt.Sprintf("computer %d already has an active session", e.ComputerID)
}

// IsConflictError checks if an error is a ConflictError
func IsConflictError(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

// InvalidStateError indicates an operation that the session's current status does not allow
type InvalidStateError struct {
	SessionID int64
	Status    models.SessionStatus
	Operation string // e.g. "close", "record payment"
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s session %d: session is %s", e.Operation, e.SessionID, e.Status)
}

// IsInvalidStateError checks if an error is an InvalidStateError
func IsInvalidStateError(err error) bool {
	var e *InvalidStateError
	return errors.As(err, &e)
}

// OverpaymentError indicates a payment that would take the total paid above the billed amount
type OverpaymentError struct {
	SessionID int64
	Billed    decimal.Decimal
	Paid      decimal.Decimal
	Attempted decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s on session %d exceeds outstanding %s (billed %s, paid %s)",
		e.Attempted.StringFixed(2), e.SessionID, e.Billed.Sub(e.Paid).StringFixed(2),
		e.Billed.StringFixed(2), e.Paid.StringFixed(2))
}

// IsOverpaymentError checks if an error is an OverpaymentError
func IsOverpaymentError(err error) bool {
	var e *OverpaymentError
	return errors.As(err, &e)
}

// ValidationError indicates a malformed argument
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// DuplicateError indicates that a computer name or address is already registered
type DuplicateError struct {
	Entity string
	Field  string
	Value  string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Entity, e.Field, e.Value)
}

// IsDuplicateError checks if an error is a DuplicateError
func IsDuplicateError(err error) bool {
	var e *DuplicateError
	return errors.As(err, &e)
}

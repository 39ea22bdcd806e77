// Package shared holds the error kinds, domain errors and events used by the
// period and inventory packages. It imports nothing outside the standard
// library.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is; the HTTP layer maps each kind to
// a status code.
var (
	ErrNotFound = errors.New("entity not found")
	ErrConflict = errors.New("conflicting state")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrLockNotAcquired means another request held the item for too long.
	ErrLockNotAcquired = errors.New("lock not acquired")
)

// DomainError is a failure of operation Op on an aggregate of Domain
// ("item", "rental", "period"). Kind is one of the error kinds above and Err
// an optional cause.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	msg := e.Domain + "." + e.Op + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap yields the cause, or the kind when there is none.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches another DomainError by identity fields, or the kind and the
// cause chain.
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e.Domain == t.Domain && e.Op == t.Op && e.Message == t.Message
	}
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError attaches cause err to a new DomainError.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	de := NewDomainError(domain, op, kind, message)
	de.Err = err
	return de
}

// Validationf builds a validation error with a formatted message.
func Validationf(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrValidation, fmt.Sprintf(format, args...))
}

// Item domain errors
var (
	ErrItemNotFound        = NewDomainError("item", "Find", ErrNotFound, "item not found")
	ErrItemCheckedOut      = NewDomainError("item", "Delete", ErrConflict, "item is currently checked out")
	ErrItemUnavailable     = NewDomainError("item", "Checkout", ErrConflict, "item is not available")
	ErrDuplicateSerial     = NewDomainError("item", "Save", ErrConflict, "serial number already registered")
	ErrInvalidCategory     = NewDomainError("item", "Validate", ErrValidation, "invalid item category")
	ErrItemNameRequired    = NewDomainError("item", "Validate", ErrValidation, "item name is required")
	ErrItemNameTooLong     = NewDomainError("item", "Validate", ErrValueOutOfRange, "item name exceeds 100 characters")
	ErrSerialTooLong       = NewDomainError("item", "Validate", ErrValueOutOfRange, "serial number exceeds 100 characters")
	ErrInvalidItemID       = NewDomainError("item", "Validate", ErrInvalidID, "invalid item ID")
	ErrAvailabilityIsOwned = NewDomainError("item", "Update", ErrValidation, "availability is managed by the rental ledger")
)

// Rental domain errors
var (
	ErrRentalNotFound       = NewDomainError("rental", "Find", ErrNotFound, "open rental record not found")
	ErrRentalAlreadyOpen    = NewDomainError("rental", "Checkout", ErrConflict, "item already has an open rental")
	ErrBorrowerRequired     = NewDomainError("rental", "Validate", ErrValidation, "borrower ID is required")
	ErrDeliveredByRequired  = NewDomainError("rental", "Validate", ErrValidation, "deliveredBy is required")
	ErrDeliveredByTooLong   = NewDomainError("rental", "Validate", ErrValueOutOfRange, "deliveredBy exceeds 100 characters")
	ErrAccessoryTooLong     = NewDomainError("rental", "Validate", ErrValueOutOfRange, "requested accessory exceeds 100 characters")
	ErrInvalidPeriodIndex   = NewDomainError("period", "Validate", ErrValueOutOfRange, "period index out of range")
	ErrInvalidPeriodTable   = NewDomainError("period", "NewTable", ErrValidation, "invalid period table")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsValidation covers every input-shaped kind.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrValueOutOfRange)
}

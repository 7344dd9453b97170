// Package shared contains common domain types, errors and events
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"context"
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation = errors.New("validation error")

	// Economy errors
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAlreadyFull        = errors.New("already full")
	ErrUnlimitedActive    = errors.New("unlimited hearts active")
	ErrAlreadyActive      = errors.New("already active")
	ErrAlreadyUsed        = errors.New("already used")
	ErrNoHeartsRemaining  = errors.New("no hearts remaining")
	ErrFeatureUnavailable = errors.New("feature unavailable")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrLockNotAcquired        = errors.New("lock not acquired")

	// Infrastructure errors
	ErrInternal = errors.New("internal error")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "economy", "hearts", "powerup"
	Op      string // Operation that failed, e.g., "Spend", "Purchase"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Economy domain errors
var (
	ErrEconomyNotFound      = NewDomainError("economy", "Find", ErrNotFound, "economy record not found")
	ErrEconomyAlreadyExists = NewDomainError("economy", "Create", ErrAlreadyExists, "economy record already exists")
	ErrInvalidUserID        = NewDomainError("economy", "Validate", ErrValidation, "invalid user ID")
	ErrStaleRecord          = NewDomainError("economy", "Save", ErrConcurrentModification, "record was modified concurrently")
)

// Hearts errors
var (
	ErrInvalidHeartAmount = NewDomainError("hearts", "Spend", ErrValidation, "amount must be between 1 and 5")
	ErrOutOfHearts        = NewDomainError("hearts", "Spend", ErrNoHeartsRemaining, "no hearts remaining")
	ErrHeartsAlreadyFull  = NewDomainError("hearts", "Refill", ErrAlreadyFull, "hearts are already full")
	ErrHeartsUnlimited    = NewDomainError("hearts", "Refill", ErrUnlimitedActive, "unlimited hearts are active")
)

// Power-up errors
var (
	ErrNotEnoughGems      = NewDomainError("powerup", "Purchase", ErrInsufficientFunds, "not enough gems")
	ErrUnknownPowerUp     = NewDomainError("powerup", "Purchase", ErrValidation, "unknown power-up type")
	ErrWagerAlreadyActive = NewDomainError("powerup", "Purchase", ErrAlreadyActive, "double-or-nothing already active")
	ErrSuperTrialUsed     = NewDomainError("powerup", "Purchase", ErrAlreadyUsed, "super trial already used")
	ErrPowerUpDisabled    = NewDomainError("powerup", "Purchase", ErrFeatureUnavailable, "power-up is disabled")
)

// Lesson errors
var (
	ErrNegativeXP        = NewDomainError("lesson", "Record", ErrValidation, "xp earned cannot be negative")
	ErrNegativeTimeSpent = NewDomainError("lesson", "Record", ErrValidation, "time spent cannot be negative")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsConflict reports errors caused by the current state of the record
// (as opposed to bad input or infrastructure failures).
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyFull) ||
		errors.Is(err, ErrUnlimitedActive) ||
		errors.Is(err, ErrAlreadyActive) ||
		errors.Is(err, ErrAlreadyUsed) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrConcurrentModification)
}

// Internal wraps an infrastructure failure so it maps to ErrInternal.
func Internal(domain, op string, err error) error {
	if err == nil {
		return nil
	}
	return WrapError(domain, op, ErrInternal, "persistence failure", err)
}

// ErrorKind returns a short stable label for the error's base kind.
// It is used for metric labels and response codes.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrNoHeartsRemaining):
		return "no_hearts_remaining"
	case errors.Is(err, ErrFeatureUnavailable):
		return "feature_unavailable"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, ErrLockNotAcquired):
		return "lock_not_acquired"
	case IsConflict(err):
		return "conflict"
	default:
		return "internal"
	}
}

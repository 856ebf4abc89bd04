package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the engine wraps exactly one of these,
// so callers can branch with errors.Is at either the category or the specific level.
var (
	// ErrValidation is returned when input is malformed. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")
	// ErrStateConflict is returned when an operation conflicts with the current state
	ErrStateConflict = errors.New("state conflict")
	// ErrAuthorization is returned when the caller is not allowed to perform an action
	ErrAuthorization = errors.New("not authorized")
	// ErrExternalDependency is returned when the store or a transport fails
	ErrExternalDependency = errors.New("external dependency failure")
)

// Loan governance errors
var (
	ErrNoApprovers            = fmt.Errorf("%w: no active admins available to approve", ErrValidation)
	ErrRequestNotFound        = fmt.Errorf("%w: loan request not found", ErrNotFound)
	ErrAlreadyDecided         = fmt.Errorf("%w: loan request already decided", ErrStateConflict)
	ErrVoterNotEligible       = fmt.Errorf("%w: voter is not an approver of this request", ErrAuthorization)
	ErrConcurrentModification = fmt.Errorf("%w: document modified concurrently", ErrStateConflict)
	ErrInvalidDecision        = fmt.Errorf("%w: decision must be approved or rejected", ErrValidation)
)

// Ledger and membership errors
var (
	ErrMemberNotFound      = fmt.Errorf("%w: member not found", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("%w: transaction not found", ErrNotFound)
	ErrGroupCodeNotFound   = fmt.Errorf("%w: group code not found", ErrNotFound)
	ErrAlreadyExists       = fmt.Errorf("%w: resource already exists", ErrStateConflict)
)

// Bulk import errors
var (
	ErrEmptyBatch     = fmt.Errorf("%w: batch has no rows", ErrValidation)
	ErrMissingColumns = fmt.Errorf("%w: batch is missing required columns", ErrValidation)
	ErrNoValidRows    = fmt.Errorf("%w: batch has no valid rows", ErrValidation)
)

// Validation wraps a human-readable message in ErrValidation.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// External wraps a store or transport failure in ErrExternalDependency unless it
// already carries one of the engine's categories.
func External(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrStateConflict) || errors.Is(err, ErrAuthorization) ||
		errors.Is(err, ErrExternalDependency) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrExternalDependency, err)
}

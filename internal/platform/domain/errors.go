// Package domain holds the error taxonomy shared by every layer of the service.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. A DomainError always wraps exactly one of them.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrCapacityConflict  = errors.New("capacity conflict")
	ErrScheduleViolation = errors.New("schedule violation")
	ErrBusinessRule      = errors.New("business rule violation")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrInvalidState      = errors.New("invalid state transition")
	ErrGateway           = errors.New("payment gateway error")
	ErrPersistence       = errors.New("persistence error")
)

// DomainError carries a stable kind, a human-readable message and optional details.
type DomainError struct {
	Err     error
	Message string
	Details map[string]any
}

func (e *DomainError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

// Unwrap exposes the sentinel kind to errors.Is.
func (e *DomainError) Unwrap() error { return e.Err }

// NewValidationError reports malformed or missing input.
func NewValidationError(message string) *DomainError {
	return &DomainError{Err: ErrValidation, Message: message}
}

// NewNotFoundError reports an unknown entity.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s %s not found", entity, id),
		Details: map[string]any{"entity": entity, "id": id},
	}
}

// NewCapacityError reports that fewer units remain than were requested.
func NewCapacityError(requested, remaining int) *DomainError {
	return &DomainError{
		Err:     ErrCapacityConflict,
		Message: fmt.Sprintf("requested %d units but only %d remain", requested, remaining),
		Details: map[string]any{"remaining": remaining},
	}
}

// NewScheduleError reports a window outside operating hours.
func NewScheduleError(message string) *DomainError {
	return &DomainError{Err: ErrScheduleViolation, Message: message}
}

// NewBusinessRuleError reports a rejected operation that is otherwise well-formed.
func NewBusinessRuleError(message string) *DomainError {
	return &DomainError{Err: ErrBusinessRule, Message: message}
}

// NewForbiddenError reports an actor acting on something it does not own.
func NewForbiddenError(message string) *DomainError {
	return &DomainError{Err: ErrForbidden, Message: message}
}

// NewConflictError reports a concurrent modification.
func NewConflictError(message string) *DomainError {
	return &DomainError{Err: ErrConflict, Message: message}
}

// NewInvalidStateError reports a forbidden status transition.
func NewInvalidStateError(from, to string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidState,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
		Details: map[string]any{"from": from, "to": to},
	}
}

// NewGatewayError wraps a payment provider failure. Gateway errors are retryable.
func NewGatewayError(op string, cause error) *DomainError {
	return &DomainError{
		Err:     ErrGateway,
		Message: fmt.Sprintf("%s: %v", op, cause),
		Details: map[string]any{"operation": op},
	}
}

// NewPersistenceError wraps a storage failure.
func NewPersistenceError(op string, cause error) *DomainError {
	return &DomainError{
		Err:     ErrPersistence,
		Message: fmt.Sprintf("%s: %v", op, cause),
	}
}

// IsRetryable reports whether the caller should retry the operation later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGateway) || errors.Is(err, ErrPersistence) || errors.Is(err, ErrConflict)
}

// AsDomainError extracts the DomainError from an error chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

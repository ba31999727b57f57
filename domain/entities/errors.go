package entities

import (
	"errors"
	"fmt"
)

// ErrorKind classifies caller-facing rejections
type ErrorKind string

const (
	ErrorKindValidation    ErrorKind = "validation"
	ErrorKindStateConflict ErrorKind = "state_conflict"
	ErrorKindUnauthorized  ErrorKind = "unauthorized"
	ErrorKindNotFound      ErrorKind = "not_found"
)

// DomainError is a structured rejection returned by domain operations.
// Message is safe to show to the user who triggered the operation.
type DomainError struct {
	Kind    ErrorKind
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewValidationError creates an error for malformed or out-of-range input
func NewValidationError(format string, args ...any) *DomainError {
	return &DomainError{Kind: ErrorKindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewStateConflictError creates an error for operations not allowed in the current state
func NewStateConflictError(format string, args ...any) *DomainError {
	return &DomainError{Kind: ErrorKindStateConflict, Message: fmt.Sprintf(format, args...)}
}

// NewUnauthorizedError creates an error for callers lacking admin capability
func NewUnauthorizedError(format string, args ...any) *DomainError {
	return &DomainError{Kind: ErrorKindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError creates an error for unknown watch parties or wagers
func NewNotFoundError(format string, args ...any) *DomainError {
	return &DomainError{Kind: ErrorKindNotFound, Message: fmt.Sprintf(format, args...)}
}

// ErrorKindOf returns the kind of a domain error, or "" for other errors
func ErrorKindOf(err error) ErrorKind {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return ""
}

// IsValidationError checks if err is a validation rejection
func IsValidationError(err error) bool {
	return ErrorKindOf(err) == ErrorKindValidation
}

// IsStateConflict checks if err is a state-conflict rejection
func IsStateConflict(err error) bool {
	return ErrorKindOf(err) == ErrorKindStateConflict
}

// IsUnauthorized checks if err is an authorization rejection
func IsUnauthorized(err error) bool {
	return ErrorKindOf(err) == ErrorKindUnauthorized
}

// IsNotFound checks if err is a not-found rejection
func IsNotFound(err error) bool {
	return ErrorKindOf(err) == ErrorKindNotFound
}

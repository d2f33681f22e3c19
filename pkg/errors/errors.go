package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// State-conflict errors: well-formed requests rejected on a precondition.
var (
	ErrAlreadyExists    = New("ALREADY_EXISTS", http.StatusConflict, "snapshot already exists for company and batch")
	ErrAlreadyUsed      = New("ALREADY_USED", http.StatusConflict, "dream company privilege already consumed")
	ErrNotIneligible    = New("NOT_INELIGIBLE", http.StatusConflict, "student is not in the ineligible set")
	ErrNotPlaced        = New("NOT_PLACED", http.StatusConflict, "student is not placed")
	ErrNoActiveOverride = New("NO_ACTIVE_OVERRIDE", http.StatusConflict, "no active override for student")
	ErrOutOfOrder       = New("OUT_OF_ORDER", http.StatusConflict, "round number is out of order")
	ErrAlreadyFinalized = New("ALREADY_FINALIZED", http.StatusConflict, "round results already finalized")
	ErrEditLocked       = New("EDIT_LOCKED", http.StatusConflict, "round is locked by a later round")
)

// ErrConcurrentModification signals a lost optimistic-lock race; callers
// should re-read and retry.
var ErrConcurrentModification = New("CONCURRENT_MODIFICATION", http.StatusConflict, "entity was modified concurrently")

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

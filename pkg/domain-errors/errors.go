// Package domainerrors carries coded errors between managers, the participant
// service and whatever transport sits in front of them. Stores never return
// these directly; they return sentinel errors which services translate.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a failure for callers.
type Code string

const (
	// CodeConflict: a create collided with an existing record.
	CodeConflict Code = "conflict"
	// CodeNotFound: the addressed record does not exist.
	CodeNotFound Code = "not_found"
	// CodeUnauthorized: the acting owner does not own the record.
	CodeUnauthorized Code = "unauthorized"
	// CodeValidation: malformed input rejected at the boundary.
	CodeValidation Code = "validation"
	// CodeDirectory: the remote directory call failed.
	CodeDirectory Code = "directory"
	// CodeBackend: the local storage backend failed.
	CodeBackend Code = "backend"
	// CodeInvariantViolation: a model constructor refused its input.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal covers everything else.
	CodeInternal Code = "internal"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to err. A nil err yields nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Package domainerrors provides coded domain errors. Services construct
// these at precondition boundaries so handlers and tests can branch on the
// code without string matching. Stores do NOT use this package; they return
// pkg/platform/sentinel errors and services translate.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and assertions.
type Code string

const (
	// CodeUnauthorized: the caller lacks the owner or inspector capability
	// the operation requires.
	CodeUnauthorized Code = "unauthorized"
	// CodeValidation: malformed input (zero address, score out of range,
	// empty category, bad ciphertext proof).
	CodeValidation Code = "validation"
	// CodeConflict: the operation is not valid in the current state
	// (already verified, already authorized, not currently authorized).
	CodeConflict Code = "conflict"
	// CodeSelfReference: the caller and the record submitter are the same
	// principal where independence is required.
	CodeSelfReference Code = "self_reference"
	// CodeOutOfRange: an id or pagination offset addresses nothing.
	CodeOutOfRange Code = "out_of_range"

	CodeNotFound           Code = "not_found"
	CodeBadRequest         Code = "bad_request"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal"
)

// Error carries a code, a human message, and an optional wrapped cause.
type Error struct {
	code Code
	msg  string
	err  error
}

// New builds a coded error with no underlying cause.
func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{code: code, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Code returns the classification of this error.
func (e *Error) Code() Code { return e.code }

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.code == code
	}
	return false
}

// Is is a readable alias for HasCode in test assertions.
func Is(err error, code Code) bool { return HasCode(err, code) }

// Package errors defines the coded errors shared by the pdaviz packages.
//
// Every failure that crosses a package boundary carries a [Code]. Callers
// branch on the code, not on the message:
//
//   - Input contract codes (INVALID_PAYLOAD, UNKNOWN_KIND, UNKNOWN_NODE, CYCLE)
//     discard the whole fetch cycle; nothing is mounted.
//   - Transient codes (NETWORK_ERROR, TIMEOUT, BACKEND_ERROR) are shown to the
//     user while the mounted graphs stay as they are.
//   - STALE marks a response that a newer request superseded.
//
// Usage:
//
//	err := errors.New(errors.ErrCodeInvalidPayload, "transition target %d is not a state", to)
//	if errors.IsInputContract(err) {
//	    return err
//	}
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Code is a machine-readable error class.
type Code string

const (
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidPayload Code = "INVALID_PAYLOAD"
	ErrCodeInvalidFormat  Code = "INVALID_FORMAT"
	ErrCodeInvalidRole    Code = "INVALID_ROLE"
	ErrCodeInvalidPath    Code = "INVALID_PATH"
	ErrCodeInvalidLabel   Code = "INVALID_LABEL"
	ErrCodeUnknownKind    Code = "UNKNOWN_KIND"
	ErrCodeUnknownNode    Code = "UNKNOWN_NODE"
	ErrCodeCycle          Code = "CYCLE"

	ErrCodeNotFound   Code = "NOT_FOUND"
	ErrCodeNotMounted Code = "NOT_MOUNTED"

	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"
	ErrCodeBackend Code = "BACKEND_ERROR"

	ErrCodeStale Code = "STALE"
)

var (
	contractCodes  = []Code{ErrCodeInvalidPayload, ErrCodeUnknownKind, ErrCodeUnknownNode, ErrCodeCycle}
	transientCodes = []Code{ErrCodeNetwork, ErrCodeTimeout, ErrCodeBackend}
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns an error with code and a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap is New with a cause attached.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	e := New(code, format, args...)
	e.Cause = cause
	return e
}

// find returns the outermost *Error in err's chain.
func find(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Is reports whether the outermost *Error in err's chain has code.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode returns the code of the outermost *Error in err's chain, or "".
func GetCode(err error) Code {
	if e, ok := find(err); ok {
		return e.Code
	}
	return ""
}

// UserMessage strips the code prefix and cause from coded errors.
func UserMessage(err error) string {
	if e, ok := find(err); ok {
		return e.Message
	}
	return err.Error()
}

// IsInputContract reports whether err invalidates a whole fetch cycle.
func IsInputContract(err error) bool {
	return hasCode(err, contractCodes)
}

// IsTransient reports whether err only needs a notification. Deadline
// expiry counts even when nothing wrapped it in a coded error.
func IsTransient(err error) bool {
	return hasCode(err, transientCodes) || errors.Is(err, context.DeadlineExceeded)
}

func hasCode(err error, codes []Code) bool {
	c := GetCode(err)
	for _, want := range codes {
		if c == want {
			return true
		}
	}
	return false
}

// BackendError is the cause attached when the matcher answers with
// status "error".
type BackendError struct {
	Endpoint string
	Message  string
}

func (e *BackendError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "matcher reported an error"
	}
	return e.Endpoint + ": " + msg
}

// Code is always [ErrCodeBackend].
func (e *BackendError) Code() Code { return ErrCodeBackend }

// Package errcode defines the error codes and canonical messages reported by
// the sensor API.
//
// Every error returned to API callers, synchronously or through an
// error-shaped event, is an *Error carrying one of the codes below. Callers
// match on the code with errors.Is or extract it with Of.
package errcode

import (
	"errors"
	"fmt"
)

// Code is a numeric API error code.
type Code int32

// API error codes.
const (
	// CodePermissionDenied is reported when the caller lacks the permission the
	// sensor requires.
	CodePermissionDenied Code = 201

	// CodeParameterInvalid is reported for unsupported sensor IDs,
	// non-invocable callbacks and malformed options.
	CodeParameterInvalid Code = 401

	// CodeServiceException is reported for invalid intervals at emission time
	// and for driver faults.
	CodeServiceException Code = 14500101
)

// Canonical messages.
const (
	MessagePermissionDenied = "Permission denied."
	MessageParameterInvalid = "The parameter invalid."
	MessageServiceException = "Service exception."
)

// Message returns the canonical message for the code.
func (c Code) Message() string {
	switch c {
	case CodePermissionDenied:
		return MessagePermissionDenied
	case CodeParameterInvalid:
		return MessageParameterInvalid
	case CodeServiceException:
		return MessageServiceException
	default:
		return ""
	}
}

// String returns a short symbolic name.
func (c Code) String() string {
	switch c {
	case CodePermissionDenied:
		return "PERMISSION_DENIED"
	case CodeParameterInvalid:
		return "PARAMETER_INVALID"
	case CodeServiceException:
		return "SERVICE_EXCEPTION"
	case 0:
		return "OK"
	default:
		return fmt.Sprintf("CODE_%d", int32(c))
	}
}

// Error is an API error.
type Error struct {
	Code    Code
	Message string

	// Op names the operation that failed ("on", "once", "off", ...).
	Op string

	// Detail is diagnostic text that is not part of the canonical message.
	Detail string

	// Err is the underlying cause, if any.
	Err error
}

// Error returns the canonical message, prefixed by the operation when set.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.Message()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinel values for errors.Is comparisons.
var (
	ErrPermissionDenied = &Error{Code: CodePermissionDenied, Message: MessagePermissionDenied}
	ErrParameterInvalid = &Error{Code: CodeParameterInvalid, Message: MessageParameterInvalid}
	ErrServiceException = &Error{Code: CodeServiceException, Message: MessageServiceException}
)

// New creates an error with the canonical message for code.
func New(code Code, op, detail string) *Error {
	return &Error{Code: code, Message: code.Message(), Op: op, Detail: detail}
}

// Parameter returns a 401 error.
func Parameter(op, detail string) *Error {
	return New(CodeParameterInvalid, op, detail)
}

// Service returns a 14500101 error wrapping cause.
func Service(op string, cause error) *Error {
	e := New(CodeServiceException, op, "")
	if cause != nil {
		e.Detail = cause.Error()
		e.Err = cause
	}
	return e
}

// PermissionDenied returns a 201 error naming the missing permission.
func PermissionDenied(op, permission string) *Error {
	return New(CodePermissionDenied, op, permission)
}

// Of returns the code carried by err: 0 for nil, the *Error code when err
// wraps one, and CodeServiceException for anything else.
func Of(err error) Code {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeServiceException
}

// MessageOf returns the canonical message for err's code, or "" for nil.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return Of(err).Message()
}

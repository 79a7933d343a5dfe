// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error types and error handling utilities for hioload-todo.
// Lower layers (store, codec) return these typed errors; only the router
// decides which HTTP status a code maps to.

package api

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeMalformedRequest
	ErrCodeBadRequest
	ErrCodeValidation
	ErrCodeNotFound
	ErrCodeBodyTooLarge
	ErrCodeHeadersTooLarge
	ErrCodeVersionNotSupported
	ErrCodeTimeout
	ErrCodeInternal
)

// String returns the short name used in logs and metric labels.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeMalformedRequest:
		return "malformed_request"
	case ErrCodeBadRequest:
		return "bad_request"
	case ErrCodeValidation:
		return "validation"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeBodyTooLarge:
		return "body_too_large"
	case ErrCodeHeadersTooLarge:
		return "headers_too_large"
	case ErrCodeVersionNotSupported:
		return "version_not_supported"
	case ErrCodeTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Common errors used across the library. Match with errors.Is; any *Error
// carrying the same code matches.
var (
	ErrMalformedRequest    = &Error{Code: ErrCodeMalformedRequest, Message: "Malformed request."}
	ErrBadRequest          = &Error{Code: ErrCodeBadRequest, Message: "Bad request."}
	ErrValidation          = &Error{Code: ErrCodeValidation, Message: "Validation failed."}
	ErrNotFound            = &Error{Code: ErrCodeNotFound, Message: "Not found."}
	ErrBodyTooLarge        = &Error{Code: ErrCodeBodyTooLarge, Message: "Request body too large."}
	ErrHeadersTooLarge     = &Error{Code: ErrCodeHeadersTooLarge, Message: "Request headers too large."}
	ErrVersionNotSupported = &Error{Code: ErrCodeVersionNotSupported, Message: "HTTP version is not supported."}
	ErrTimeout             = &Error{Code: ErrCodeTimeout, Message: "Request timed out."}
	ErrInternal            = &Error{Code: ErrCodeInternal, Message: "Internal server error."}
)

// Error represents a structured error with code and context.
// Message is safe to show to clients; Err and Context are for logs only.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if len(e.Context) > 0 {
		msg = fmt.Sprintf("%s (context: %+v)", msg, e.Context)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Wrap attaches cause as the underlying error.
func (e *Error) Wrap(cause error) *Error {
	e.Err = cause
	return e
}

// CodeOf extracts the ErrorCode of err, or ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// MessageOf returns the client-safe message of err. Foreign errors never leak
// their text.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return ErrInternal.Message
}

// Package errors carries the coded errors shared by the bot packages. A
// code survives wrapping, so callers can branch on what went wrong without
// matching messages.
package errors

import (
	"errors"
	"fmt"
	"maps"
)

// Code categorizes an error.
type Code string

const (
	// CodeUnknown marks an error that was never given a code.
	CodeUnknown Code = "unknown"
	// CodeInvalidArgument marks a caller passing an unusable value.
	CodeInvalidArgument Code = "invalid_argument"
	// CodeInternal marks a broken internal invariant.
	CodeInternal Code = "internal"
	// CodeValidation marks configuration or scenario input that failed checks.
	CodeValidation Code = "validation"

	// CodeListenerFailure marks one or more event listeners returning an error.
	CodeListenerFailure Code = "listener_failure"
	// CodePanic marks a recovered panic in a task or listener.
	CodePanic Code = "panic"
	// CodeNotRunning marks work handed to a stopped execution context.
	CodeNotRunning Code = "not_running"
	// CodeCanceled marks work abandoned because the caller's context ended.
	CodeCanceled Code = "canceled"
)

// Error is an error with a code, an optional cause and free-form metadata.
type Error struct {
	// Code categorizes the error.
	Code Code

	// Message describes what failed.
	Message string

	// Cause is the wrapped error, if any.
	Cause error

	// Meta holds extra context, such as the event kind.
	Meta map[string]any
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithMeta sets a metadata key and returns e for chaining.
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	e.Meta[key] = value
	return e
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

func InvalidArgument(message string) *Error { return New(CodeInvalidArgument, message) }

func InvalidArgumentf(format string, args ...any) *Error {
	return Newf(CodeInvalidArgument, format, args...)
}

func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// Wrap adds context to err. The code and a copy of the metadata of the
// nearest coded error in the chain are carried over; plain errors get
// CodeUnknown. Wrap returns nil for a nil err.
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}

	wrapped := &Error{Code: CodeUnknown, Message: message, Cause: err}
	if inner, ok := find(err); ok {
		wrapped.Code = inner.Code
		wrapped.Meta = maps.Clone(inner.Meta)
	}
	return wrapped
}

func Wrapf(err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode is Wrap with the code replaced.
func WrapWithCode(err error, code Code, message string) *Error {
	wrapped := Wrap(err, message)
	if wrapped != nil {
		wrapped.Code = code
	}
	return wrapped
}

func find(err error) (*Error, bool) {
	var coded *Error
	if errors.As(err, &coded) {
		return coded, true
	}
	return nil, false
}

// GetCode returns the code of the nearest coded error in the chain, or
// CodeUnknown.
func GetCode(err error) Code {
	if coded, ok := find(err); ok {
		return coded.Code
	}
	return CodeUnknown
}

// GetMeta returns the metadata of the nearest coded error in the chain.
func GetMeta(err error) map[string]any {
	if coded, ok := find(err); ok {
		return coded.Meta
	}
	return nil
}

// Is reports whether the nearest coded error in the chain has code.
func Is(err error, code Code) bool {
	coded, ok := find(err)
	return ok && coded.Code == code
}

func IsValidation(err error) bool      { return Is(err, CodeValidation) }
func IsListenerFailure(err error) bool { return Is(err, CodeListenerFailure) }
func IsPanic(err error) bool           { return Is(err, CodePanic) }

// Fields returns the code and metadata of err as log fields.
func Fields(err error) map[string]any {
	coded, ok := find(err)
	if !ok {
		return map[string]any{"code": CodeUnknown}
	}
	fields := make(map[string]any, len(coded.Meta)+1)
	maps.Copy(fields, coded.Meta)
	fields["code"] = coded.Code
	return fields
}

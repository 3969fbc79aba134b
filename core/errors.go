// Package core defines the data model shared by the event engine: topics,
// payloads, hooks, and the error and logging surfaces the engine exposes to
// callers. It holds no dispatch logic — that lives in the root
// eventengine package, which imports core.
package core

import (
	"errors"
	"fmt"
)

// Error codes for engine operations. Each corresponds to a taxonomy entry
// in the error-handling design: ParseError, QueueFull, QueueEmpty,
// InvalidTopic, NotFound, AlreadyRegistered, LifecycleError, HandlerFault,
// AllocationError.
const (
	ErrCodeParse             = "PARSE_ERROR"
	ErrCodeQueueFull         = "QUEUE_FULL"
	ErrCodeQueueEmpty        = "QUEUE_EMPTY"
	ErrCodeInvalidTopic      = "INVALID_TOPIC"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyRegistered = "ALREADY_REGISTERED"
	ErrCodeLifecycle         = "LIFECYCLE_ERROR"
	ErrCodeHandlerFault      = "HANDLER_FAULT"
	ErrCodeAllocation        = "ALLOCATION_ERROR"
	ErrCodeConfiguration     = "CONFIGURATION_ERROR"
)

// Error is the error type returned by this module's operations; the one
// exception is topic parsing, which returns *ParseError. Code is stable
// and safe to switch on; Message is for humans; Err, when present, is
// the wrapped cause.
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an *Error with no wrapped cause.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorWithCause creates an *Error wrapping cause.
func NewErrorWithCause(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// Sentinel errors for the common fixed-message cases; callers may compare
// with errors.Is against these, or use the Is* helpers below.
var (
	ErrQueueFull         = NewError(ErrCodeQueueFull, "queue is full")
	ErrQueueEmpty        = NewError(ErrCodeQueueEmpty, "queue is empty")
	ErrInvalidTopic      = NewError(ErrCodeInvalidTopic, "topic is not exact")
	ErrNotFound          = NewError(ErrCodeNotFound, "binding not found")
	ErrAlreadyRegistered = NewError(ErrCodeAlreadyRegistered, "hook already registered for topic")
)

// ParseError reports a malformed topic string, including the offending
// input and byte offset where parsing failed.
type ParseError struct {
	Input  string
	Offset int
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: invalid topic %q at offset %d: %s", ErrCodeParse, e.Input, e.Offset, e.Reason)
}

// codeOf extracts the Code of err if it is, or wraps, an *Error.
func codeOf(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// IsQueueFull reports whether err is (or wraps) a queue-full error.
func IsQueueFull(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeQueueFull
}

// IsQueueEmpty reports whether err is (or wraps) a queue-empty error.
func IsQueueEmpty(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeQueueEmpty
}

// IsNotFound reports whether err is (or wraps) a not-found error.
func IsNotFound(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeNotFound
}

// IsAlreadyRegistered reports whether err is (or wraps) an
// already-registered error.
func IsAlreadyRegistered(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeAlreadyRegistered
}

// IsLifecycleError reports whether err is (or wraps) a lifecycle error.
func IsLifecycleError(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeLifecycle
}

// IsInvalidTopic reports whether err is (or wraps) a non-exact-topic
// publish attempt.
func IsInvalidTopic(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeInvalidTopic
}

// IsParseError reports whether err is a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

package aggregates

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode standardizes write/read failure semantics across the views.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "validation"
	CodeNotFound           ErrorCode = "not_found"
	CodeConflict           ErrorCode = "conflict"
	CodeInvariantViolation ErrorCode = "invariant_violation"
	CodePreconditionFailed ErrorCode = "precondition_failed"
	CodeRetryable          ErrorCode = "retryable"
	CodeInternal           ErrorCode = "internal"
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates err with a code. A nil err stays nil.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

func IsCode(err error, code ErrorCode) bool {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return false
	}
	return aggErr.Code == code
}

func CodeOf(err error) ErrorCode {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return ""
	}
	return aggErr.Code
}

// Retryable reports whether a caller may re-invoke the operation unchanged.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeRetryable, CodeConflict:
		return true
	default:
		return false
	}
}

// Permanent reports whether re-running the operation can never succeed:
// the input is malformed, the owner does not exist or a view invariant broke.
// Caller cancellation is not permanent.
func Permanent(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch CodeOf(err) {
	case CodeValidation, CodeNotFound, CodeInvariantViolation:
		return true
	default:
		return false
	}
}

// CallerFault reports whether err was caused by the request rather than the store.
func CallerFault(err error) bool {
	switch CodeOf(err) {
	case CodeValidation, CodeNotFound:
		return true
	default:
		return false
	}
}

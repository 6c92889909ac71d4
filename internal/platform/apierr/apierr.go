package apierr

import (
	"errors"
	"fmt"
	"net/http"

	domainagg "github.com/yungbote/trainwatch-backend/internal/domain/aggregates"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromAggregate maps a view write error onto an HTTP status. An *Error
// already in the chain wins.
func FromAggregate(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	code := domainagg.CodeOf(err)
	switch code {
	case domainagg.CodeValidation:
		return New(http.StatusBadRequest, "validation_error", err)
	case domainagg.CodeNotFound:
		return New(http.StatusNotFound, "not_found", err)
	case domainagg.CodeConflict, domainagg.CodePreconditionFailed:
		return New(http.StatusConflict, string(code), err)
	case domainagg.CodeRetryable:
		return New(http.StatusServiceUnavailable, "retryable", err)
	default:
		return New(http.StatusInternalServerError, "internal_error", err)
	}
}

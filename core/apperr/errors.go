package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeNotFound         Code = "NOT_FOUND"
	CodeIncidentNotFound Code = "INCIDENT_NOT_FOUND"
	CodeForbidden        Code = "FORBIDDEN"
	CodeInternal         Code = "INTERNAL_ERROR"
)

type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

func Validation(message string) *Error {
	return New(CodeValidation, message)
}

func NotFound(code Code, message string) *Error {
	if code == "" {
		code = CodeNotFound
	}
	return New(code, message)
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, message)
}

func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: "internal server error", Cause: err}
}

var (
	ErrValidation = New(CodeValidation, "")
	ErrNotFound   = New(CodeNotFound, "")
	ErrForbidden  = New(CodeForbidden, "")
	ErrInternal   = New(CodeInternal, "")
)

// As returns the *Error in err's chain, or an internal error wrapping err.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

func IsNotFound(err error) bool {
	e := As(err)
	return e != nil && (e.Code == CodeNotFound || e.Code == CodeIncidentNotFound)
}

func HTTPStatus(err error) int {
	e := As(err)
	if e == nil {
		return http.StatusOK
	}
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound, CodeIncidentNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the single error type surfaced to HTTP clients.
// Status is the HTTP status, Code a stable machine-readable identifier.
type AppError struct {
	Status  int
	Code    string
	Message string
	Details any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches on Code so sentinel AppErrors work with errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetails returns a copy carrying details.
func (e *AppError) WithDetails(details any) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrap returns a copy with the underlying cause attached.
func (e *AppError) Wrap(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

func New(status int, code, message string) *AppError {
	return &AppError{Status: status, Code: code, Message: message}
}

func BadRequest(code, message string) *AppError {
	return New(http.StatusBadRequest, code, message)
}

func Validation(details any) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: "validation_failed", Message: "invalid payload", Details: details}
}

func Unauthorized(message string) *AppError {
	return New(http.StatusUnauthorized, "unauthorized", message)
}

func Forbidden(message string) *AppError {
	return New(http.StatusForbidden, "forbidden", message)
}

func NotFound(resource string) *AppError {
	return New(http.StatusNotFound, "not_found", resource+" not found")
}

func Conflict(code, message string) *AppError {
	return New(http.StatusConflict, code, message)
}

func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Status:  http.StatusConflict,
		Code:    "invalid_transition",
		Message: fmt.Sprintf("cannot move from %s to %s", from, to),
		Details: map[string]string{"from": from, "to": to},
	}
}

func Unavailable(code, message string) *AppError {
	return New(http.StatusServiceUnavailable, code, message)
}

func BadGateway(code, message string) *AppError {
	return New(http.StatusBadGateway, code, message)
}

func Internal(err error) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Code: "internal_error", Message: "internal server error", Err: err}
}

// From converts any error into an *AppError. Unknown errors become 500s.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

package common

import (
	"errors"
	"net/http"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another AppError by code so sentinel values survive wrapping
// with extra details.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code != "" && e.Code == other.Code
}

// WithDetails returns a copy of the error carrying details.
func (e *AppError) WithDetails(details any) *AppError {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Details = details
	return &cp
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// ErrorMapping translates a sentinel error to a response status and code.
type ErrorMapping struct {
	Err    error
	Status int
	Code   string
}

// WriteError renders err using the canonical error shape. AppErrors carry
// their own status; other errors are matched against mappings and fall back
// to 500.
func WriteError(w http.ResponseWriter, err error, mappings ...ErrorMapping) {
	if err == nil {
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	for _, m := range mappings {
		if m.Err != nil && errors.Is(err, m.Err) {
			JSONError(w, m.Status, m.Code, err.Error(), nil)
			return
		}
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
}

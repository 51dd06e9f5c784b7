package common

import (
	"errors"
	"net/http"
)

// Error codes shared across the API surface. The taxonomy distinguishes
// recoverable caller mistakes (validation, conflicts) from dependency
// failures; pure calculators are expected to never fail, and any error
// escaping one is a defect rather than a condition handlers branch on.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeNotFound     = "NOT_FOUND"
	CodeCollaborator = "COLLABORATOR_ERROR"
	CodeInternal     = "INTERNAL"
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

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// NewValidationError marks malformed or missing input rejected before the store is touched.
func NewValidationError(message string) *AppError {
	return NewAppError(CodeValidation, message, http.StatusBadRequest, nil)
}

// NewConflictError marks a lost race or an illegal state transition the caller can recover from.
func NewConflictError(message string, err error) *AppError {
	return NewAppError(CodeConflict, message, http.StatusConflict, err)
}

// NewNotFoundError marks a missing record.
func NewNotFoundError(message string) *AppError {
	return NewAppError(CodeNotFound, message, http.StatusNotFound, nil)
}

// NewCollaboratorError wraps a failure in an external dependency (store, queue, cache).
func NewCollaboratorError(message string, err error) *AppError {
	return NewAppError(CodeCollaborator, message, http.StatusBadGateway, err)
}

// WriteError renders any error through the canonical envelope, mapping
// AppError codes to their HTTP status and everything else to 500.
func WriteError(w http.ResponseWriter, err error) {
	var app *AppError
	if errors.As(err, &app) {
		status := app.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		JSONError(w, status, app.Code, app.Message, app.Details)
		return
	}
	JSONError(w, http.StatusInternalServerError, CodeInternal, "internal error", nil)
}

package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by every layer. Engine adapters wrap their failures
// with these so the facade and the HTTP layer can classify them with errors.Is.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrValidation         = errors.New("validation failed")
	ErrBackendUnavailable = errors.New("search backend unavailable")
	ErrPartialFailure     = errors.New("partial failure")
	ErrInternal           = errors.New("internal error")
)

// Machine-readable error codes written to API responses.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeValidation         = "VALIDATION_ERROR"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodePartialFailure     = "BULK_PARTIAL_FAILURE"
	CodeInternal           = "INTERNAL_ERROR"
)

// AppError is an error with the code, message and status the API reports.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Status  int               `json:"-"`
	Err     error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// kinds maps each sentinel to its code and status. Order matters only for
// errors that wrap more than one sentinel.
var kinds = []struct {
	sentinel error
	code     string
	status   int
}{
	{ErrNotFound, CodeNotFound, http.StatusNotFound},
	{ErrInvalidArgument, CodeInvalidArgument, http.StatusBadRequest},
	{ErrValidation, CodeValidation, http.StatusUnprocessableEntity},
	{ErrBackendUnavailable, CodeBackendUnavailable, http.StatusServiceUnavailable},
	{ErrPartialFailure, CodePartialFailure, http.StatusMultiStatus},
}

func newError(sentinel error, message string) *AppError {
	e := &AppError{Code: CodeInternal, Message: message, Status: http.StatusInternalServerError, Err: sentinel}
	for _, k := range kinds {
		if k.sentinel == sentinel {
			e.Code, e.Status = k.code, k.status
		}
	}
	return e
}

// NotFound reports a missing resource as 404.
func NotFound(resource, id string) *AppError {
	return newError(ErrNotFound, fmt.Sprintf("%s with id %s not found", resource, id))
}

// InvalidArgument reports a malformed or unsupported parameter as 400.
func InvalidArgument(format string, args ...any) *AppError {
	return newError(ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Validation reports per-field failures as 422.
func Validation(message string, fields map[string]string) *AppError {
	e := newError(ErrValidation, message)
	e.Fields = fields
	return e
}

// BackendUnavailable reports an engine failure as 503. The result matches
// both ErrBackendUnavailable and err.
func BackendUnavailable(err error) *AppError {
	e := newError(ErrBackendUnavailable, "search backend is unavailable")
	e.Err = fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	return e
}

// Internal reports an unexpected failure as 500.
func Internal(err error) *AppError {
	e := newError(ErrInternal, "an internal error occurred")
	e.Err = fmt.Errorf("%w: %w", ErrInternal, err)
	return e
}

// classify returns the code and status for err. Unknown errors are
// INTERNAL_ERROR 500.
func classify(err error) (string, int) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, appErr.Status
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.code, k.status
		}
	}
	return CodeInternal, http.StatusInternalServerError
}

// HTTPStatus returns the HTTP status for err.
func HTTPStatus(err error) int {
	_, status := classify(err)
	return status
}

// Code returns the machine-readable code for err.
func Code(err error) string {
	code, _ := classify(err)
	return code
}

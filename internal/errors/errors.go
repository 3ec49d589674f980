package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"obsnote/domain/core"
)

// AppError carries a stable code next to the human message so transports
// can map failures without string matching.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeDatabaseError      = "DATABASE_ERROR"
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeExternalService    = "EXTERNAL_SERVICE_ERROR"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeFetchFailed        = "FETCH_FAILED"
	CodePreconditionFailed = "PRECONDITION_FAILED"
	CodeAgentNotFound      = "AGENT_NOT_FOUND"
	CodeCanceled           = "CANCELED"
	CodeSuperseded         = "SUPERSEDED"
	CodeUnknown            = "UNKNOWN"
)

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap adds context to err. The code of a wrapped AppError is kept, any
// other error is classified from its domain sentinel.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: codeOf(err), Message: message, Cause: err}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode replaces the code of err
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{Code: code, Message: appErr.Message, Cause: appErr.Cause}
	}
	return &AppError{Code: code, Message: err.Error(), Cause: err}
}

// IsAppError checks if an error is or wraps an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the code of the outermost AppError, otherwise UNKNOWN
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// FromDomain converts a domain error into an AppError with a matching code.
// The message of the domain error is kept verbatim.
func FromDomain(err error) error {
	if err == nil || IsAppError(err) {
		return err
	}
	return &AppError{Code: codeOf(err), Message: err.Error(), Cause: err}
}

func codeOf(err error) string {
	var appErr *AppError
	switch {
	case stderrors.As(err, &appErr):
		return appErr.Code
	case stderrors.Is(err, core.ErrAgentNotFound):
		return CodeAgentNotFound
	case stderrors.Is(err, core.ErrSuperseded):
		return CodeSuperseded
	case stderrors.Is(err, context.Canceled):
		return CodeCanceled
	case stderrors.Is(err, core.ErrFetchFailed):
		return CodeFetchFailed
	case core.IsPreconditionError(err):
		return CodePreconditionFailed
	case core.IsNotFoundError(err):
		return CodeNotFound
	}
	return CodeInternalError
}

// HTTPStatus maps an error code to the status a handler should answer with
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeInvalidInput, CodeValidationError:
		return http.StatusBadRequest
	case CodePreconditionFailed:
		return http.StatusUnprocessableEntity
	case CodeNotFound, CodeAgentNotFound:
		return http.StatusNotFound
	case CodeFetchFailed, CodeExternalService:
		return http.StatusBadGateway
	case CodeSuperseded:
		return http.StatusConflict
	case CodeCanceled:
		return 499
	}
	return http.StatusInternalServerError
}

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func ExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code:    CodeExternalService,
		Message: fmt.Sprintf("%s service error", service),
		Cause:   cause,
	}
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func AgentNotFound() *AppError {
	return &AppError{Code: CodeAgentNotFound, Message: core.ErrAgentNotFound.Error(), Cause: core.ErrAgentNotFound}
}

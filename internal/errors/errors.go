package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes an engine error.
type ErrorCode string

const (
	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeMissingConfig ErrorCode = "MISSING_CONFIG"

	// External surface errors
	ErrCodeChatAPI ErrorCode = "CHAT_API"
	ErrCodeStream  ErrorCode = "STREAM"

	// Validation errors
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Internal errors
	ErrCodeAuthentication ErrorCode = "AUTHENTICATION"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeTimeout        ErrorCode = "TIMEOUT"
	ErrCodeInternalError  ErrorCode = "INTERNAL_ERROR"
)

// AppError is a categorized error with an optional user-facing message.
// Store operations surface these to callers, which are expected to present
// UserMessage directly rather than branch on the underlying cause.
type AppError struct {
	Code        ErrorCode
	Message     string
	Cause       error
	Retryable   bool
	UserMessage string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithUserMessage sets the displayable message.
func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with a code and message.
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

// WrapRetryable wraps an error and marks it recoverable by a later retry.
func WrapRetryable(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err, Retryable: true}
}

// NewValidationError creates a pre-network validation failure. These
// short-circuit store operations before any request is issued.
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("%s: %s", field, message)).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewAPIError creates an error for a failed request/response call.
// Server-provided messages become the user-facing text when present.
func NewAPIError(endpoint string, statusCode int, serverMessage string, err error) *AppError {
	appErr := Wrap(err, ErrCodeChatAPI, fmt.Sprintf("chat API call failed: %s", endpoint))
	appErr.Retryable = statusCode >= 500 || statusCode == 429 || statusCode == 408 || statusCode == 0
	if serverMessage != "" {
		appErr.UserMessage = serverMessage
	} else {
		appErr.UserMessage = "Something went wrong, please try again"
	}
	return appErr
}

// NewTimeoutError creates a timeout error; timeouts are always retryable.
func NewTimeoutError(operation string) *AppError {
	return &AppError{
		Code:        ErrCodeTimeout,
		Message:     fmt.Sprintf("%s timed out", operation),
		Retryable:   true,
		UserMessage: "Request timed out, please try again",
	}
}

// IsRetryable reports whether err is marked recoverable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetCode extracts the error code, defaulting to INTERNAL_ERROR.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalError
}

// GetUserMessage extracts the displayable message from an error.
func GetUserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.UserMessage != "" {
		return appErr.UserMessage
	}
	return "Something went wrong, please try again"
}

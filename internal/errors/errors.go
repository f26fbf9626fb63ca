package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeUnauthorized indicates the upstream session is invalid or expired.
	// Resolved by redirecting to login, never by retrying.
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	// ErrCodeForbidden indicates the session is valid but the role is not
	// permitted. Distinct from unauthorized; also resolved by redirect.
	ErrCodeForbidden ErrorCode = "forbidden"
	// ErrCodeValidation indicates invalid input caught locally. A validation
	// error must never reach the network.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeService indicates a non-success upstream response carrying a
	// server-provided message, shown to the user verbatim.
	ErrCodeService ErrorCode = "service"
	// ErrCodeConnectivity indicates a transport failure or timeout, shown to
	// the user as a generic connectivity message.
	ErrCodeConnectivity ErrorCode = "connectivity"
)

// AppError represents a structured application error with a code, message, and
// optional cause. It supports error wrapping for use with errors.Is/errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message. For service errors this is
	// the upstream-provided text, verbatim.
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Unauthorized creates a new Unauthorized error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: message,
	}
}

// Forbidden creates a new Forbidden error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrCodeForbidden,
		Message: message,
	}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// Service creates a new Service error carrying the upstream message verbatim.
func Service(message string) *AppError {
	return &AppError{
		Code:    ErrCodeService,
		Message: message,
	}
}

// Connectivity creates a new Connectivity error.
func Connectivity(message string) *AppError {
	return &AppError{
		Code:    ErrCodeConnectivity,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsUnauthorized checks if an error is an Unauthorized error.
func IsUnauthorized(err error) bool {
	return isCode(err, ErrCodeUnauthorized)
}

// IsForbidden checks if an error is a Forbidden error.
func IsForbidden(err error) bool {
	return isCode(err, ErrCodeForbidden)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsService checks if an error is a Service error.
func IsService(err error) bool {
	return isCode(err, ErrCodeService)
}

// IsConnectivity checks if an error is a Connectivity error.
func IsConnectivity(err error) bool {
	return isCode(err, ErrCodeConnectivity)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// UserMessage returns the text to surface in the notification channel for err.
// Service and validation errors carry their own message; connectivity errors
// collapse to a generic message so transport details never reach the user.
func UserMessage(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return "Something went wrong. Please try again."
	}
	if appErr.Code == ErrCodeConnectivity {
		return "Could not reach the server. Check your connection and try again."
	}
	return appErr.Message
}

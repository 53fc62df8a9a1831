// Package errors provides structured error types for the pixlift service.
// All errors carry a category, code, and message so callers can map any
// failure to a stable taxonomy without string matching.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the subsystem that produced them.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryTransform  ErrorCategory = "TRANSFORM"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeNotFound          = "NOT_FOUND"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodeInvalidRequest    = "INVALID_REQUEST"

	// Transform codes
	CodeTransformFailed   = "TRANSFORM_FAILED"
	CodeEncodeUnsupported = "ENCODE_UNSUPPORTED"

	// Storage codes
	CodeUploadFailed      = "UPLOAD_FAILED"
	CodeBucketUnreachable = "BUCKET_UNREACHABLE"

	// Internal codes
	CodeNotConfigured = "NOT_CONFIGURED"
	CodeUnexpected    = "UNEXPECTED"
)

// PixliftError is the structured error type used throughout the service.
type PixliftError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error returns a formatted error string.
func (e *PixliftError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PixliftError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PixliftError) Is(target error) bool {
	var t *PixliftError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PixliftError.
func New(category ErrorCategory, code, message string) *PixliftError {
	return &PixliftError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap creates a new PixliftError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PixliftError {
	return &PixliftError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PixliftError) WithDetails(details map[string]interface{}) *PixliftError {
	cp := *e
	cp.Details = details
	return &cp
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PixliftError.
func GetCategory(err error) ErrorCategory {
	var pe *PixliftError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PixliftError.
func GetCode(err error) string {
	var pe *PixliftError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Convenience constructors for common errors.

func NewNotFound(path string) *PixliftError {
	return New(ErrCategoryValidation, CodeNotFound, fmt.Sprintf("file not found: %s", path))
}

func NewUnsupportedFormat(ext string) *PixliftError {
	return New(ErrCategoryValidation, CodeUnsupportedFormat, fmt.Sprintf("unsupported format: %s", ext))
}

func NewFileTooLarge(path string, size, limit int64) *PixliftError {
	return New(ErrCategoryValidation, CodeFileTooLarge,
		fmt.Sprintf("file too large: %s is %d bytes, limit %d", path, size, limit))
}

func NewValidationError(message string) *PixliftError {
	return New(ErrCategoryValidation, CodeInvalidRequest, message)
}

func NewTransformError(message string, cause error) *PixliftError {
	return Wrap(ErrCategoryTransform, CodeTransformFailed, message, cause)
}

func NewStorageError(code, message string, cause error) *PixliftError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewNotConfigured(component string) *PixliftError {
	return New(ErrCategoryInternal, CodeNotConfigured, fmt.Sprintf("%s is not configured", component))
}

func NewInternalError(message string, cause error) *PixliftError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

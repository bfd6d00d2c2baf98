package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping the code of the
// innermost AppError when there is one
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Is reports whether err carries the given code anywhere in its chain
func Is(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// UserMessage returns the text shown to the user for err. Internal errors
// keep their details out of the page.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if GetCode(err) == CodeInternalError || !IsAppError(err) {
		return "Something went wrong while processing your request"
	}
	return err.Error()
}

// HTTPStatus maps an error code to the status used by the JSON endpoints
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case CodeParseFailure, CodeInvalidInput, CodeMissingColumn:
		return http.StatusBadRequest
	case CodeNoData, CodeNotFound:
		return http.StatusNotFound
	case CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeDatabaseError, CodeConfigInvalid:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Predefined error codes
const (
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeDatabaseError     = "DATABASE_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeParseFailure      = "PARSE_FAILURE"
	CodeMissingColumn     = "MISSING_COLUMN"
	CodeNoData            = "NO_DATA"
	CodeTooLarge          = "TOO_LARGE"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// UnsupportedFormat is returned for uploads whose extension is not accepted
func UnsupportedFormat(fileName string) *AppError {
	return New(CodeUnsupportedFormat,
		fmt.Sprintf("Unsupported file format %q. Please upload a CSV or Excel file.", fileName))
}

// ParseFailure carries the underlying parser error so the user sees the cause
func ParseFailure(fileName string, cause error) *AppError {
	return &AppError{
		Code:    CodeParseFailure,
		Message: fmt.Sprintf("could not read %s", fileName),
		Cause:   cause,
	}
}

func MissingColumn(column string) *AppError {
	return New(CodeMissingColumn, fmt.Sprintf("column %q does not exist in the loaded table", column))
}

// NoData is returned when an interaction needs a table and none is loaded
func NoData() *AppError {
	return New(CodeNoData, "Please upload a file to view the diagrams.")
}

func TooLarge(size, limit int64) *AppError {
	return New(CodeTooLarge, fmt.Sprintf("File size (%.1f MB) exceeds the %d MB limit",
		float64(size)/(1024*1024), limit/(1024*1024)))
}

package errors

import (
	"fmt"
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

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    "INTERNAL_ERROR",
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
	_, ok := err.(*AppError)
	return ok
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeSimulationError = "SIMULATION_ERROR"
	CodeFitError        = "FIT_ERROR"
	CodeGofError        = "GOF_ERROR"
	CodePlotError       = "PLOT_ERROR"
	CodeReportError     = "REPORT_ERROR"
	CodeArchiveError    = "ARCHIVE_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeInvalidInput    = "INVALID_INPUT"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func SimulationError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeSimulationError,
		Message: message,
		Cause:   cause,
	}
}

func FitError(model string, cause error) *AppError {
	return &AppError{
		Code:    CodeFitError,
		Message: fmt.Sprintf("fitting %s model failed", model),
		Cause:   cause,
	}
}

func GofError(model string, cause error) *AppError {
	return &AppError{
		Code:    CodeGofError,
		Message: fmt.Sprintf("goodness of fit for %s failed", model),
		Cause:   cause,
	}
}

func PlotError(figure string, cause error) *AppError {
	return &AppError{
		Code:    CodePlotError,
		Message: fmt.Sprintf("rendering %s failed", figure),
		Cause:   cause,
	}
}

func ReportError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeReportError,
		Message: message,
		Cause:   cause,
	}
}

func ArchiveError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeArchiveError,
		Message: message,
		Cause:   cause,
	}
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

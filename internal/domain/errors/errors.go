package errors

import (
	"net/http"

	"healthbridge/internal/errors"
)

// StatusSessionExpired is the non-standard status returned when an idle session
// is torn down, so clients can prompt for a fresh login instead of retrying.
const StatusSessionExpired = 440

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	return e.message
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// WithDetails returns a copy carrying details. errors.Is still matches the
// original sentinel through Is.
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// WithMessage returns a copy with a replaced user-facing message.
func (e *BaseError) WithMessage(message string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   message,
		details:   e.details,
	}
}

// Is matches any BaseError sharing the same error code.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok {
		return false
	}

	return e.errorCode == t.errorCode
}

// Predefined error types
var (
	// Input errors
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Input validation failed.",
		"",
	)

	ErrPasswordStrength = NewBaseError(
		http.StatusBadRequest,
		"PASSWORD_STRENGTH",
		"Password must be at least 8 characters and contain uppercase, lowercase, and a number.",
		"",
	)

	ErrInvalidResetToken = NewBaseError(
		http.StatusBadRequest,
		"INVALID_RESET_TOKEN",
		"Invalid or expired reset token.",
		"",
	)

	ErrTwoFactorNotSetup = NewBaseError(
		http.StatusBadRequest,
		"TWO_FACTOR_NOT_SETUP",
		"Please set up 2FA first.",
		"",
	)

	ErrInvalidTwoFactorCode = NewBaseError(
		http.StatusBadRequest,
		"INVALID_2FA_CODE",
		"Invalid verification code.",
		"",
	)

	ErrInvalidDoctor = NewBaseError(
		http.StatusBadRequest,
		"INVALID_DOCTOR",
		"Invalid doctor selected.",
		"",
	)

	ErrInvalidPatient = NewBaseError(
		http.StatusBadRequest,
		"INVALID_PATIENT",
		"Invalid patient.",
		"",
	)

	ErrPatientIDRequired = NewBaseError(
		http.StatusBadRequest,
		"PATIENT_ID_REQUIRED",
		"Patient ID is required.",
		"",
	)

	ErrInvalidStatusTransition = NewBaseError(
		http.StatusBadRequest,
		"INVALID_STATUS_TRANSITION",
		"This status change is not allowed.",
		"",
	)

	ErrNoRefillsRemaining = NewBaseError(
		http.StatusBadRequest,
		"NO_REFILLS_REMAINING",
		"No refills remaining for this prescription.",
		"",
	)

	// Authentication errors
	ErrUnauthorized = NewBaseError(
		http.StatusUnauthorized,
		"UNAUTHORIZED",
		"Authentication required.",
		"",
	)

	ErrInvalidCredentials = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_CREDENTIALS",
		"Invalid email or password.",
		"",
	)

	ErrTwoFactorRequired = NewBaseError(
		http.StatusForbidden,
		"TWO_FACTOR_REQUIRED",
		"Two-factor verification required.",
		"",
	)

	ErrTwoFactorFailed = NewBaseError(
		http.StatusUnauthorized,
		"TWO_FACTOR_FAILED",
		"Invalid verification code.",
		"",
	)

	ErrWrongPassword = NewBaseError(
		http.StatusUnauthorized,
		"WRONG_PASSWORD",
		"Current password is incorrect.",
		"",
	)

	ErrAccountDeactivated = NewBaseError(
		http.StatusForbidden,
		"ACCOUNT_DEACTIVATED",
		"Account is deactivated. Contact your administrator.",
		"",
	)

	ErrSessionExpired = NewBaseError(
		StatusSessionExpired,
		"SESSION_EXPIRED",
		"Session expired due to inactivity. Please log in again.",
		"",
	)

	ErrTooManyRequests = NewBaseError(
		http.StatusTooManyRequests,
		"TOO_MANY_REQUESTS",
		"Too many login attempts. Please try again in 15 minutes.",
		"",
	)

	ErrPasswordHashFailed = NewBaseError(
		http.StatusInternalServerError,
		"PASSWORD_HASH_FAILED",
		"Password processing failed.",
		"",
	)

	// User errors
	ErrUserNotFound = NewBaseError(
		http.StatusNotFound,
		"USER_NOT_FOUND",
		"User not found.",
		"",
	)

	ErrUserAlreadyExists = NewBaseError(
		http.StatusConflict,
		"USER_ALREADY_EXISTS",
		"An account with this email already exists.",
		"",
	)

	// Scheduling errors
	ErrAppointmentNotFound = NewBaseError(
		http.StatusNotFound,
		"APPOINTMENT_NOT_FOUND",
		"Appointment not found.",
		"",
	)

	ErrSlotUnavailable = NewBaseError(
		http.StatusConflict,
		"SLOT_UNAVAILABLE",
		"This time slot is no longer available.",
		"",
	)

	// Clinical record errors
	ErrPrescriptionNotFound = NewBaseError(
		http.StatusNotFound,
		"PRESCRIPTION_NOT_FOUND",
		"Prescription not found.",
		"",
	)

	ErrPatientNotFound = NewBaseError(
		http.StatusNotFound,
		"PATIENT_NOT_FOUND",
		"Patient not found.",
		"",
	)

	ErrNotificationNotFound = NewBaseError(
		http.StatusNotFound,
		"NOTIFICATION_NOT_FOUND",
		"Notification not found.",
		"",
	)

	// Transaction-related errors
	ErrTransactionFailed = NewBaseError(
		http.StatusInternalServerError,
		"TRANSACTION_FAILED",
		"Database transaction failed.",
		"",
	)

	// General errors
	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"Internal server error.",
		"",
	)

	ErrForbidden = NewBaseError(
		http.StatusForbidden,
		"FORBIDDEN",
		"Access denied.",
		"",
	)

	ErrNotFound = NewBaseError(
		http.StatusNotFound,
		"NOT_FOUND",
		"Resource not found.",
		"",
	)

	ErrConflict = NewBaseError(
		http.StatusConflict,
		"CONFLICT",
		"Resource conflict.",
		"",
	)
)

// DatabaseExecuteError represents a database execution error, implementing the AppError interface
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError creates a database-related error
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface
func (e *DatabaseExecuteError) Error() string {
	return errors.Wrap(e.err, "database execution failed").Error()
}

// Unwrap exposes the driver error.
func (e *DatabaseExecuteError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code
func (e *DatabaseExecuteError) HTTPCode() int {
	return http.StatusInternalServerError
}

// ErrorCode returns the business error code
func (e *DatabaseExecuteError) ErrorCode() string {
	return "DATABASE_EXECUTE_FAILED"
}

// Message returns the user-friendly error message
func (e *DatabaseExecuteError) Message() string {
	return "Database operation failed."
}

// Details returns detailed error information
func (e *DatabaseExecuteError) Details() string {
	return e.details
}

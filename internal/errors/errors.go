// Package errors provides custom error types for the Debtwise API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Plan errors. PLAN_INFEASIBLE and SIMULATION_RUNAWAY abort schedule
// generation before any rows are written.
var (
	ErrPlanNotFound      = &AppError{Code: "PLAN_NOT_FOUND", Message: "Debt plan not found", StatusCode: http.StatusNotFound}
	ErrDuplicateActive   = &AppError{Code: "DUPLICATE_ACTIVE_PLAN", Message: "User already has an active debt plan", StatusCode: http.StatusConflict}
	ErrPlanInfeasible    = &AppError{Code: "PLAN_INFEASIBLE", Message: "Monthly budget does not cover the required minimum payments", StatusCode: http.StatusBadRequest}
	ErrSimulationRunaway = &AppError{Code: "SIMULATION_RUNAWAY", Message: "Payment schedule exceeds 50 years - check the plan inputs", StatusCode: http.StatusBadRequest}
)

// Loan errors.
var (
	ErrLoanNotFound  = &AppError{Code: "LOAN_NOT_FOUND", Message: "Loan not found", StatusCode: http.StatusNotFound}
	ErrLoanNotInPlan = &AppError{Code: "LOAN_NOT_IN_PLAN", Message: "Loan does not belong to this debt plan", StatusCode: http.StatusBadRequest}
)

// Payment errors. The amortization-violation pair (PAYMENT_BELOW_INTEREST,
// PAYMENT_EXCEEDS_PAYOFF) reject the payment outright with no balance update.
var (
	ErrPaymentNotFound    = &AppError{Code: "PAYMENT_NOT_FOUND", Message: "Payment not found", StatusCode: http.StatusNotFound}
	ErrPaymentBeforeStart = &AppError{Code: "PAYMENT_BEFORE_PLAN_START", Message: "Payment date cannot be before the plan start date", StatusCode: http.StatusBadRequest}
	ErrMonthOutOfRange    = &AppError{Code: "MONTH_OUT_OF_RANGE", Message: "Payment targets a month beyond the current schedule", StatusCode: http.StatusBadRequest}
	ErrPaymentTooSmall    = &AppError{Code: "PAYMENT_BELOW_INTEREST", Message: "Payment does not cover the accrued interest", StatusCode: http.StatusBadRequest}
	ErrPaymentTooLarge    = &AppError{Code: "PAYMENT_EXCEEDS_PAYOFF", Message: "Payment exceeds the loan payoff amount", StatusCode: http.StatusBadRequest}
	ErrInvalidMethod      = &AppError{Code: "INVALID_PAYMENT_METHOD", Message: "Unsupported payment method", StatusCode: http.StatusBadRequest}
)

// Schedule errors.
var (
	ErrScheduleNotFound = &AppError{Code: "SCHEDULE_NOT_FOUND", Message: "No payment schedule found for that month", StatusCode: http.StatusNotFound}
)

// Package errors provides custom error types for the Fintrack API.
// All service-layer errors should use AppError so that handlers can map
// them to consistent responses without leaking internal details.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
// The code never reaches the wire; it exists for logs and tests.
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
	ErrUnauthorized        = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials  = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrInvalidRefreshToken = &AppError{Code: "INVALID_REFRESH_TOKEN", Message: "Invalid or expired refresh token", StatusCode: http.StatusUnauthorized}
	ErrForbidden           = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
	ErrAccountLocked       = &AppError{Code: "ACCOUNT_LOCKED", Message: "Account is temporarily locked", StatusCode: http.StatusLocked}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "Internal server error", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Account errors.
var (
	ErrAccountNotFound  = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrAccountInactive  = &AppError{Code: "ACCOUNT_INACTIVE", Message: "Account is inactive", StatusCode: http.StatusBadRequest}
	ErrCurrencyMismatch = &AppError{Code: "CURRENCY_MISMATCH", Message: "Transaction currency does not match the account currency", StatusCode: http.StatusBadRequest}
)

// Category errors.
var (
	ErrCategoryNotFound     = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrDuplicateSibling     = &AppError{Code: "DUPLICATE_SIBLING", Message: "A category with this name already exists under the same parent", StatusCode: http.StatusConflict}
	ErrSelfParentCategory   = &AppError{Code: "SELF_PARENT_CATEGORY", Message: "A category cannot be its own parent", StatusCode: http.StatusBadRequest}
	ErrCategoryCycle        = &AppError{Code: "CATEGORY_CYCLE", Message: "A category cannot be moved under one of its descendants", StatusCode: http.StatusBadRequest}
	ErrCategoryTypeMismatch = &AppError{Code: "CATEGORY_TYPE_MISMATCH", Message: "Parent and child categories must have the same type", StatusCode: http.StatusBadRequest}
)

// Transaction errors.
var (
	ErrTransactionNotFound    = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrInvalidTransactionType = &AppError{Code: "INVALID_TRANSACTION_TYPE", Message: "Unsupported transaction type", StatusCode: http.StatusBadRequest}
	ErrSameAccountTransfer    = &AppError{Code: "SAME_ACCOUNT_TRANSFER", Message: "Cannot transfer to the same account", StatusCode: http.StatusBadRequest}
)

// Budget errors.
var (
	ErrBudgetNotFound = &AppError{Code: "BUDGET_NOT_FOUND", Message: "Budget not found", StatusCode: http.StatusNotFound}
)

// Recurring transaction errors.
var (
	ErrRecurringNotFound = &AppError{Code: "RECURRING_NOT_FOUND", Message: "Recurring transaction not found", StatusCode: http.StatusNotFound}
)

// Reporting & export errors.
var (
	ErrReportTypeRequired  = &AppError{Code: "REPORT_TYPE_REQUIRED", Message: "Report type is required", StatusCode: http.StatusBadRequest}
	ErrInvalidReportType   = &AppError{Code: "INVALID_REPORT_TYPE", Message: "Invalid report type", StatusCode: http.StatusBadRequest}
	ErrInvalidDateRange    = &AppError{Code: "INVALID_DATE_RANGE", Message: "Invalid date range", StatusCode: http.StatusBadRequest}
	ErrReportTimeout       = &AppError{Code: "REPORT_TIMEOUT", Message: "Report generation timed out", StatusCode: http.StatusGatewayTimeout}
	ErrInvalidExportFormat = &AppError{Code: "INVALID_EXPORT_FORMAT", Message: "Unsupported export format: must be one of csv, json, xlsx, pdf", StatusCode: http.StatusBadRequest}
)

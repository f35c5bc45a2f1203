package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Workflow error codes returned to API clients.
const (
	CodeValidation                = "VALIDATION"
	CodeRateNotConfigured         = "RATE_NOT_CONFIGURED"
	CodeAmountOutOfRange          = "AMOUNT_OUT_OF_RANGE"
	CodeInsufficientBalance       = "INSUFFICIENT_BALANCE"
	CodeAmountMismatch            = "AMOUNT_MISMATCH"
	CodeWalletNotConfigured       = "WALLET_NOT_CONFIGURED"
	CodeInvalidStatus             = "INVALID_STATUS"
	CodeNotFound                  = "NOT_FOUND"
	CodeCancellationLimitExceeded = "CANCELLATION_LIMIT_EXCEEDED"
	CodeUnauthorized              = "UNAUTHORIZED"
	CodeInternal                  = "INTERNAL"
)

type AppError struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

func NewAppError(code string, status int, message string, details ...string) *AppError {
	var detail string
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{
		Code:    code,
		Status:  status,
		Message: message,
		Details: detail,
	}
}

func NewValidationError(message string, details ...string) *AppError {
	return NewAppError(CodeValidation, http.StatusBadRequest, message, details...)
}

func NewRateNotConfigured(from, to string) *AppError {
	return NewAppError(CodeRateNotConfigured, http.StatusNotFound,
		fmt.Sprintf("No exchange rate configured for %s to %s", from, to))
}

func NewAmountOutOfRange(message string) *AppError {
	return NewAppError(CodeAmountOutOfRange, http.StatusBadRequest, message)
}

func NewInsufficientBalance(currency string) *AppError {
	return NewAppError(CodeInsufficientBalance, http.StatusBadRequest,
		fmt.Sprintf("Insufficient %s balance to fulfill this order", currency))
}

func NewAmountMismatch(expected, got string) *AppError {
	return NewAppError(CodeAmountMismatch, http.StatusBadRequest,
		"Receive amount does not match the current exchange rate",
		fmt.Sprintf("expected %s, got %s", expected, got))
}

func NewWalletNotConfigured(method string) *AppError {
	return NewAppError(CodeWalletNotConfigured, http.StatusNotFound,
		fmt.Sprintf("No payment wallet configured for %s", method))
}

func NewInvalidStatus(status string) *AppError {
	return NewAppError(CodeInvalidStatus, http.StatusBadRequest,
		fmt.Sprintf("Invalid order status: %s", status))
}

// NewStatusConflict reports a transition that lost a race with a concurrent
// update to the same order.
func NewStatusConflict() *AppError {
	return NewAppError(CodeInvalidStatus, http.StatusConflict,
		"Order was updated concurrently, please refresh and retry")
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

func NewCancellationLimitExceeded() *AppError {
	return NewAppError(CodeCancellationLimitExceeded, http.StatusTooManyRequests,
		"Cancellation limit reached, please contact support")
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(CodeUnauthorized, http.StatusUnauthorized, message)
}

func NewInternalError(details ...string) *AppError {
	return NewAppError(CodeInternal, http.StatusInternalServerError,
		"Something went wrong, please try again later", details...)
}

// AsAppError unwraps err into an *AppError if one is in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus returns the HTTP status an error should map to. Unknown errors
// surface as 500 without leaking internals.
func HTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries the given workflow code.
func HasCode(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the order lifecycle taxonomy plus the transport
// classifications used by outbound clients.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidTransition  = errors.New("invalid order state transition")
	ErrAlreadyRedeemed    = errors.New("verification code already redeemed")
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("concurrent update conflict")
	ErrInternal           = errors.New("internal server error")
	ErrTimeout            = errors.New("timeout")
	ErrTemporaryFailure   = errors.New("temporary failure")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// AppError is a structured application error carrying an HTTP status and
// retryability hint alongside the wrapped sentinel.
type AppError struct {
	Err        error
	StatusCode int
	Message    string
	Retryable  bool
	Context    map[string]interface{}
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying sentinel
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext attaches additional context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new AppError with the given parameters
func NewAppError(err error, message string, statusCode int, retryable bool) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Context:    make(map[string]interface{}),
	}
}

// IsRetryable reports whether the caller may safely retry the operation
func IsRetryable(err error) bool {
	var appErr *AppError

	if errors.As(err, &appErr) {
		return appErr.Retryable
	}

	return errors.Is(err, ErrTemporaryFailure) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *AppError {
	return NewAppError(ErrNotFound, message, http.StatusNotFound, false)
}

// NewInvalidTransitionError reports an action that is not legal from the
// order's current state. The state and action are kept as context so staff
// UIs can explain what actually happened.
func NewInvalidTransitionError(currentState, action string) *AppError {
	msg := fmt.Sprintf("cannot %s an order in state %s", action, currentState)
	return NewAppError(ErrInvalidTransition, msg, http.StatusConflict, false).
		WithContext("current_state", currentState).
		WithContext("action", action)
}

// NewAlreadyRedeemedError reports a redemption that lost the race or reused
// a spent code. Benign for the losing caller, so it gets its own kind.
func NewAlreadyRedeemedError(orderID string) *AppError {
	return NewAppError(ErrAlreadyRedeemed, "order has already been picked up", http.StatusGone, false).
		WithContext("order_id", orderID)
}

// NewValidationError creates a validation error naming the offending field
func NewValidationError(field, message string) *AppError {
	return NewAppError(ErrValidation, message, http.StatusBadRequest, false).
		WithContext("field", field)
}

// NewConflictError reports an exhausted optimistic-concurrency retry budget.
// The whole operation may be retried from a fresh read.
func NewConflictError(message string) *AppError {
	return NewAppError(ErrConflict, message, http.StatusConflict, true)
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrInternal, message, http.StatusInternalServerError, true)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string) *AppError {
	return NewAppError(ErrTimeout, message, http.StatusGatewayTimeout, true)
}

// NewTemporaryError creates a temporary failure error
func NewTemporaryError(message string) *AppError {
	return NewAppError(ErrTemporaryFailure, message, http.StatusServiceUnavailable, true)
}

// CodeOf maps an error to its wire code string
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrAlreadyRedeemed):
		return "already_redeemed"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrTemporaryFailure), errors.Is(err, ErrServiceUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}

// StatusOf maps an error to the HTTP status it should surface as
func StatusOf(err error) int {
	var appErr *AppError

	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	return http.StatusInternalServerError
}

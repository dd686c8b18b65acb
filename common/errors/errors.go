package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error. The set is closed; controllers map
// kinds to HTTP status codes and callers branch on them.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindInvalidTransition   Kind = "invalid_transition"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindBalanceCapExceeded  Kind = "balance_cap_exceeded"
	KindPromotionInvalid    Kind = "promotion_invalid"
	KindPromotionExhausted  Kind = "promotion_exhausted"
	KindConcurrencyConflict Kind = "concurrency_conflict"
	KindNotFound            Kind = "not_found"
	KindInternal            Kind = "internal"
)

// Error represents an application error with a kind and message.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validationf builds a validation error (caller's fault, never retried).
func Validationf(format string, args ...interface{}) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...), nil)
}

// InvalidTransitionf builds an illegal-state-change error.
func InvalidTransitionf(format string, args ...interface{}) *Error {
	return New(KindInvalidTransition, fmt.Sprintf(format, args...), nil)
}

// InsufficientFunds builds a debit-exceeds-balance error.
func InsufficientFunds(message string) *Error {
	return New(KindInsufficientFunds, message, nil)
}

// BalanceCapExceeded builds a credit-exceeds-cap error.
func BalanceCapExceeded(message string) *Error {
	return New(KindBalanceCapExceeded, message, nil)
}

// PromotionInvalidf builds a promotion validation error naming the failed
// predicate, surfaced verbatim for user messaging.
func PromotionInvalidf(format string, args ...interface{}) *Error {
	return New(KindPromotionInvalid, fmt.Sprintf(format, args...), nil)
}

// PromotionExhausted builds an out-of-redemption-slots error.
func PromotionExhausted(message string) *Error {
	return New(KindPromotionExhausted, message, nil)
}

// ConcurrencyConflict builds a transient contention error, retried with
// backoff before surfacing.
func ConcurrencyConflict(message string, err error) *Error {
	return New(KindConcurrencyConflict, message, err)
}

// NotFoundf builds a missing-entity error.
func NotFoundf(format string, args ...interface{}) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...), nil)
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *Error {
	return New(KindInternal, message, err)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether err is transient and worth retrying.
func Retryable(err error) bool {
	return IsKind(err, KindConcurrencyConflict)
}

// HTTPStatus maps an error kind to the status code the gin façade returns.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidTransition:
		return http.StatusConflict
	case KindInsufficientFunds, KindBalanceCapExceeded:
		return http.StatusUnprocessableEntity
	case KindPromotionInvalid:
		return http.StatusUnprocessableEntity
	case KindPromotionExhausted:
		return http.StatusConflict
	case KindConcurrencyConflict:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

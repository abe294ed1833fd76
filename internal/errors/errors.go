// Package errors defines the service error taxonomy.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a class of service error.
type ErrorCode string

const (
	CodeBadRequest    ErrorCode = "BAD_REQUEST"
	CodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	CodeForbidden     ErrorCode = "FORBIDDEN"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeConflict      ErrorCode = "CONFLICT"
	CodeInvalidToken  ErrorCode = "INVALID_TOKEN"
	CodeUpstream      ErrorCode = "UPSTREAM_ERROR"
	CodeInternal      ErrorCode = "INTERNAL_ERROR"
	CodeValidation    ErrorCode = "VALIDATION_FAILED"
	CodeRateLimited   ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodePaymentFailed ErrorCode = "PAYMENT_FAILED"
)

// ServiceError is the error type returned across service boundaries.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause.
func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails attaches a detail key/value and returns the error for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// BadRequest creates a 400 error.
func BadRequest(message string) *ServiceError {
	return &ServiceError{Code: CodeBadRequest, Message: message, HTTPStatus: http.StatusBadRequest}
}

// Validation creates a 400 error for failed input validation.
func Validation(message string) *ServiceError {
	return &ServiceError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusBadRequest}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *ServiceError {
	return &ServiceError{Code: CodeUnauthorized, Message: message, HTTPStatus: http.StatusUnauthorized}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *ServiceError {
	return &ServiceError{Code: CodeForbidden, Message: message, HTTPStatus: http.StatusForbidden}
}

// NotFound creates a 404 error.
func NotFound(message string) *ServiceError {
	return &ServiceError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// InvalidToken creates a 401 error for token validation failures.
func InvalidToken(err error) *ServiceError {
	return &ServiceError{Code: CodeInvalidToken, Message: "Invalid or expired token", HTTPStatus: http.StatusUnauthorized, Err: err}
}

// Upstream creates an error for a failed call to an external service. The
// backend's message is carried verbatim so callers can surface it to users.
func Upstream(status int, message string) *ServiceError {
	if message == "" {
		message = "upstream request failed"
	}
	return &ServiceError{Code: CodeUpstream, Message: message, HTTPStatus: http.StatusBadGateway, Details: map[string]interface{}{"upstream_status": status}}
}

// Payment creates an error for a failed payment operation.
func Payment(message string, err error) *ServiceError {
	return &ServiceError{Code: CodePaymentFailed, Message: message, HTTPStatus: http.StatusPaymentRequired, Err: err}
}

// RateLimitExceeded creates a 429 error.
func RateLimitExceeded(limit int) *ServiceError {
	return &ServiceError{
		Code:       CodeRateLimited,
		Message:    "Rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
		Details:    map[string]interface{}{"limit_per_second": limit},
	}
}

// Internal creates a 500 error wrapping the cause.
func Internal(message string, err error) *ServiceError {
	return &ServiceError{Code: CodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, Err: err}
}

// GetServiceError returns the ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// IsUnauthorized reports whether err represents an auth failure. Used to
// force re-login when the backend rejects a stored token.
func IsUnauthorized(err error) bool {
	se := GetServiceError(err)
	if se == nil {
		return false
	}
	return se.Code == CodeUnauthorized || se.Code == CodeInvalidToken ||
		se.HTTPStatus == http.StatusUnauthorized || se.HTTPStatus == http.StatusForbidden
}

// Package errors contains helper functions and types to work with errors
package errors

import (
	"errors"
	"net/http"
)

// Category defines error category
type Category int

const (
	// CategoryNoError marks a request that completed without error
	CategoryNoError Category = iota
	// CategoryValidation The intent payload is malformed or missing fields.
	// Rejected synchronously before any side effect.
	CategoryValidation
	// CategoryAuthorization The authorization proof is missing, fails
	// cryptographic verification, or the identity does not match.
	// Rejected before enqueue; never consumes retry budget.
	CategoryAuthorization
	// CategoryExecution A flow step failed (chain RPC, external quote,
	// insufficient balance). Recovered via the bounded retry loop.
	CategoryExecution
	// CategorySettlementTimeout The external cross-chain leg never
	// completed within the wait horizon. Terminal, no retry.
	CategorySettlementTimeout
	// CategoryResourceNotFound The requested resource does not exist
	CategoryResourceNotFound
	// CategoryGeneralError The service failed in an unexpected way
	CategoryGeneralError
)

func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "CategoryValidation"
	case CategoryAuthorization:
		return "CategoryAuthorization"
	case CategoryExecution:
		return "CategoryExecution"
	case CategorySettlementTimeout:
		return "CategorySettlementTimeout"
	case CategoryResourceNotFound:
		return "CategoryResourceNotFound"
	default:
		return "CategoryGeneralError"
	}
}

// ServiceError represents service specific type that
// is used all over the services.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

// Error method to comply with error interface
func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

// Unwrap returns the underlying error
func (err ServiceError) Unwrap() error {
	return err.Err
}

// Is checks that provided error is a ServiceError with desired Category
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Category == cat {
		return true
	}
	return false
}

// Retryable reports whether the error should go through the bounded retry
// path. Only execution errors retry; validation and authorization are
// rejected up front and a settlement timeout is terminal by policy.
func Retryable(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Category == CategoryExecution || svcErr.Category == CategoryGeneralError
	}
	return true
}

// ValidationError returns an error with category Validation
// the error message provided is returned to the user
// the err object provided is logged in logger
func ValidationError(err error, message string) error {
	if err == nil {
		err = errors.New("validation failed: " + message)
	}
	return &ServiceError{
		Category: CategoryValidation,
		Message:  message,
		Err:      err,
	}
}

// AuthorizationError returns an error with category Authorization
func AuthorizationError(err error, message string) error {
	if err == nil {
		err = errors.New("authorization failed: " + message)
	}
	return &ServiceError{
		Category: CategoryAuthorization,
		Message:  message,
		Err:      err,
	}
}

// ExecutionError returns an error with category Execution
func ExecutionError(err error, message string) error {
	if err == nil {
		err = errors.New("execution failed: " + message)
	}
	return &ServiceError{
		Category: CategoryExecution,
		Message:  message,
		Err:      err,
	}
}

// SettlementTimeoutError returns an error with category SettlementTimeout
func SettlementTimeoutError(err error, message string) error {
	if err == nil {
		err = errors.New("settlement timed out: " + message)
	}
	return &ServiceError{
		Category: CategorySettlementTimeout,
		Message:  message,
		Err:      err,
	}
}

// ResourceNotFoundError returns an error with category ResourceNotFound
func ResourceNotFoundError(err error, message string) error {
	if err == nil {
		err = errors.New("resource not found: " + message)
	}
	return &ServiceError{
		Category: CategoryResourceNotFound,
		Message:  message,
		Err:      err,
	}
}

// GeneralError returns a general service error
// this error mesage sent to the user is "Internal Server Error"
// the error passed is logged in the logger
func GeneralError(err error) error {
	if err == nil {
		err = errors.New("internal server error")
	}
	return &ServiceError{
		Category: CategoryGeneralError,
		Message:  "Internal Server Error",
		Err:      err,
	}
}

// StatusCode returns the HTTP status code for the error category
func (err ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryAuthorization:
		return http.StatusUnauthorized
	case CategoryResourceNotFound:
		return http.StatusNotFound
	case CategoryExecution, CategoryGeneralError:
		return http.StatusInternalServerError
	case CategorySettlementTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

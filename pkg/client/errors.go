package client

import (
	"errors"
	"fmt"
	"net"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are used up.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during a retry wait.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass categorizes a failed Sherpa call for retry decisions.
type ErrorClass string

const (
	// ErrorClassTransient covers network failures, timeouts, and server
	// errors (5xx). Transient errors are retried.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassAuth covers rejected credentials: an invalid security
	// code, 401, or 403. Retrying cannot succeed.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassFatal covers malformed requests and undecodable
	// responses. Retrying cannot succeed.
	ErrorClassFatal ErrorClass = "fatal"
)

// ServiceError is a classified error from a Sherpa service call.
type ServiceError struct {
	// Service is the SOAP operation that failed, e.g. "ChangedStock".
	Service string

	// StatusCode is the HTTP status, or 0 when the request never
	// produced a response.
	StatusCode int

	// Class drives the retry decision.
	Class ErrorClass

	// Message describes the failure (fault reason or status text).
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sherpa %s: %s error (status %d): %s: %v",
			e.Service, e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("sherpa %s: %s error (status %d): %s",
		e.Service, e.Class, e.StatusCode, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Classify maps an error to its ErrorClass. Unclassified network errors
// count as transient, everything else as fatal.
func Classify(err error) ErrorClass {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Class
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassTransient
	}

	return ErrorClassFatal
}

// IsRetryable reports whether another attempt at the failed call can succeed.
func IsRetryable(err error) bool {
	return shouldRetry(Classify(err))
}

// shouldRetry determines if an error class warrants a retry.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassTransient:
		// Network hiccups and server errors are usually temporary
		return true
	case ErrorClassAuth:
		// A bad security code stays bad
		return false
	case ErrorClassFatal:
		// Malformed payloads do not fix themselves
		return false
	default:
		return false
	}
}

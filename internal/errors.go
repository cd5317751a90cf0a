package internal

import (
	"errors"
	"fmt"
)

// ErrorType represents the kind of failure raised by the fetch layer or the cache store
type ErrorType int

const (
	// ErrorTypeInvalidCredential indicates the API rejected the access token
	ErrorTypeInvalidCredential ErrorType = iota + 1
	// ErrorTypeFetchFailed indicates a non-OK HTTP status or a network fault
	ErrorTypeFetchFailed
	// ErrorTypeNotFound indicates the API answered 404 or a cache miss
	ErrorTypeNotFound
	// ErrorTypeMalformedResponse indicates a payload that does not have the expected shape
	ErrorTypeMalformedResponse
	// ErrorTypeConnection indicates a cache store connection error
	ErrorTypeConnection
	// ErrorTypeKeyInvalid indicates an invalid cache key
	ErrorTypeKeyInvalid
	// ErrorTypeSerialization indicates JSON marshaling/unmarshaling error
	ErrorTypeSerialization
	// ErrorTypeTimeout indicates a timeout during a store or API operation
	ErrorTypeTimeout
	// ErrorTypeValidation indicates input validation failure
	ErrorTypeValidation
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrorTypeInvalidCredential:
		return "INVALID_CREDENTIAL"
	case ErrorTypeFetchFailed:
		return "FETCH_FAILED"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeMalformedResponse:
		return "MALFORMED_RESPONSE"
	case ErrorTypeConnection:
		return "CONNECTION"
	case ErrorTypeKeyInvalid:
		return "KEY_INVALID"
	case ErrorTypeSerialization:
		return "SERIALIZATION"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeValidation:
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}

// Error is the typed error shared by the API client, the cache and the stores.
// Key holds the endpoint path for API errors and the cache key for store errors.
type Error struct {
	Type       ErrorType
	Key        string
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Key != "" {
		return fmt.Sprintf("gw2 error [%s] for '%s': %s", e.Type, e.Key, msg)
	}
	return fmt.Sprintf("gw2 error [%s]: %s", e.Type, msg)
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same type, so errors.Is(err, &Error{Type: X}) works
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Type == t.Type
	}
	return false
}

// NewError creates a new Error
func NewError(errType ErrorType, key, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Key:     key,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidCredentialError creates an error for a rejected access token
func NewInvalidCredentialError(path string, status int) *Error {
	err := NewError(ErrorTypeInvalidCredential, path, "access token rejected", nil)
	err.StatusCode = status
	return err
}

// NewFetchFailedError creates an error for a failed request
func NewFetchFailedError(path string, status int, cause error) *Error {
	err := NewError(ErrorTypeFetchFailed, path, "request failed", cause)
	err.StatusCode = status
	return err
}

// NewNotFoundError creates a not found error
func NewNotFoundError(key string) *Error {
	err := NewError(ErrorTypeNotFound, key, "not found", nil)
	err.StatusCode = 404
	return err
}

// NewMalformedResponseError creates an error for a payload of unexpected shape
func NewMalformedResponseError(path, message string, cause error) *Error {
	return NewError(ErrorTypeMalformedResponse, path, message, cause)
}

// NewConnectionError creates a connection-specific store error
func NewConnectionError(message string, cause error) *Error {
	return NewError(ErrorTypeConnection, "", message, cause)
}

// NewKeyInvalidError creates a key validation error
func NewKeyInvalidError(key, message string) *Error {
	return NewError(ErrorTypeKeyInvalid, key, message, nil)
}

// NewSerializationError creates a serialization error
func NewSerializationError(key, message string, cause error) *Error {
	return NewError(ErrorTypeSerialization, key, message, cause)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(key, message string, cause error) *Error {
	return NewError(ErrorTypeTimeout, key, message, cause)
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *Error {
	return NewError(ErrorTypeValidation, "", message, cause)
}

func hasType(err error, errType ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == errType
	}
	return false
}

// IsInvalidCredentialError checks if the error is an invalid credential error
func IsInvalidCredentialError(err error) bool {
	return hasType(err, ErrorTypeInvalidCredential)
}

// IsFetchFailedError checks if the error is a fetch failure
func IsFetchFailedError(err error) bool {
	return hasType(err, ErrorTypeFetchFailed)
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsMalformedResponseError checks if the error is a malformed response error
func IsMalformedResponseError(err error) bool {
	return hasType(err, ErrorTypeMalformedResponse)
}

// IsKeyInvalidError checks if the error is a malformed cache key error
func IsKeyInvalidError(err error) bool {
	return hasType(err, ErrorTypeKeyInvalid)
}

// IsConnectionError checks if the error is a connection error
func IsConnectionError(err error) bool {
	return hasType(err, ErrorTypeConnection)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsSerializationError checks if the error is a serialization error
func IsSerializationError(err error) bool {
	return hasType(err, ErrorTypeSerialization)
}

// IsTimeoutError checks if the error is a timeout error
func IsTimeoutError(err error) bool {
	return hasType(err, ErrorTypeTimeout)
}

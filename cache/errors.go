package cache

import "github.com/kengibson1111/go-gw2-story-progress/internal"

// Error is the typed error returned by cache and store operations
type Error = internal.Error

// ErrorType classifies an Error
type ErrorType = internal.ErrorType

// Error types surfaced by the cache layer
const (
	ErrorTypeKeyInvalid    = internal.ErrorTypeKeyInvalid
	ErrorTypeConnection    = internal.ErrorTypeConnection
	ErrorTypeSerialization = internal.ErrorTypeSerialization
	ErrorTypeTimeout       = internal.ErrorTypeTimeout
	ErrorTypeValidation    = internal.ErrorTypeValidation
)

// IsKeyInvalidError reports whether err is a malformed cache key
func IsKeyInvalidError(err error) bool { return internal.IsKeyInvalidError(err) }

// IsConnectionError reports whether err is a store connection failure
func IsConnectionError(err error) bool { return internal.IsConnectionError(err) }

// IsSerializationError reports whether err is an encoding failure
func IsSerializationError(err error) bool { return internal.IsSerializationError(err) }

// IsTimeoutError reports whether err is a store timeout
func IsTimeoutError(err error) bool { return internal.IsTimeoutError(err) }

// IsValidationError reports whether err is an input validation failure
func IsValidationError(err error) bool { return internal.IsValidationError(err) }

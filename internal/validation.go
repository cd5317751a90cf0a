package internal

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// InputValidator provides input validation and sanitization for values that
// reach the GW2 API or end up inside cache keys
type InputValidator struct {
	maxTokenLength int
	maxNameLength  int
	tokenPattern   *regexp.Regexp
}

// NewInputValidator creates a new input validator with default settings
func NewInputValidator() *InputValidator {
	return &InputValidator{
		maxTokenLength: 128, // GW2 keys are 72 characters; leave room for subtokens
		maxNameLength:  100,
		tokenPattern:   regexp.MustCompile(`^[A-Za-z0-9-]+$`),
	}
}

// ValidateToken validates an opaque API access token and returns it trimmed
func (v *InputValidator) ValidateToken(token string) (string, error) {
	sanitized := strings.TrimSpace(token)
	if sanitized == "" {
		return "", NewValidationError("access token cannot be empty", nil)
	}

	if len(sanitized) > v.maxTokenLength {
		return "", NewValidationError(fmt.Sprintf("access token exceeds maximum length of %d characters", v.maxTokenLength), nil)
	}

	if !v.tokenPattern.MatchString(sanitized) {
		return "", NewValidationError("access token contains invalid characters (only alphanumeric and dashes allowed)", nil)
	}

	return sanitized, nil
}

// ValidateCharacterName validates a character name before it is used in a request path
func (v *InputValidator) ValidateCharacterName(name string) (string, error) {
	sanitized := strings.TrimSpace(name)
	if sanitized == "" {
		return "", NewValidationError("character name cannot be empty", nil)
	}

	if len(sanitized) > v.maxNameLength {
		return "", NewValidationError(fmt.Sprintf("character name exceeds maximum length of %d characters", v.maxNameLength), nil)
	}

	if !utf8.ValidString(sanitized) {
		return "", NewValidationError("character name contains invalid UTF-8 characters", nil)
	}

	for i, r := range sanitized {
		if unicode.IsControl(r) {
			return "", NewValidationError(fmt.Sprintf("character name contains control character at position %d", i), nil)
		}
	}

	if strings.Contains(sanitized, "..") {
		return "", NewValidationError("character name contains path traversal sequence", nil)
	}

	return sanitized, nil
}

// ValidateIDs validates a list of numeric catalogue ids
func (v *InputValidator) ValidateIDs(ids []int, fieldName string) error {
	for i, id := range ids {
		if id <= 0 {
			return NewValidationError(fmt.Sprintf("%s contains non-positive id %d at index %d", fieldName, id, i), nil)
		}
	}
	return nil
}

// ValidateContext validates context for timeout and cancellation
func (v *InputValidator) ValidateContext(ctx context.Context) error {
	if ctx == nil {
		return NewValidationError("context cannot be nil", nil)
	}

	// Check if context is already cancelled
	select {
	case <-ctx.Done():
		return NewValidationError("context is already cancelled", ctx.Err())
	default:
		return nil
	}
}

// ValidateTTL validates time-to-live duration
func (v *InputValidator) ValidateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return NewValidationError("TTL must be positive", nil)
	}

	maxTTL := 7 * 24 * time.Hour
	if ttl > maxTTL {
		return NewValidationError(fmt.Sprintf("TTL exceeds maximum allowed duration of %v", maxTTL), nil)
	}

	return nil
}

// ValidatePrefix validates a key prefix used for bulk invalidation
func (v *InputValidator) ValidatePrefix(prefix string) error {
	if prefix == "" {
		return NewValidationError("prefix cannot be empty", nil)
	}

	if strings.ContainsAny(prefix, "*?[]") {
		return NewValidationError(fmt.Sprintf("prefix '%s' must not contain glob characters", prefix), nil)
	}

	if strings.Contains(prefix, "..") {
		return NewValidationError("prefix contains path traversal sequence", nil)
	}

	return nil
}

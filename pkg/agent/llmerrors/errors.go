// Package llmerrors classifies reasoning-service failures for the retry layer.
package llmerrors

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of LLM errors for retry logic.
type ErrorType int8

const (
	// ErrorTypeRateLimit represents rate limiting errors (429, quota exceeded).
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents transient errors (5xx, EOF, connection reset, timeout).
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents HTTP 200 but no content.
	ErrorTypeEmptyResponse
	// ErrorTypeMalformedResponse represents a response that violates the
	// turn protocol: several operations, an unoffered operation or bad arguments.
	ErrorTypeMalformedResponse

	// ErrorTypeAuth represents authentication errors (401/403, bad API key).
	ErrorTypeAuth
	// ErrorTypeBadPrompt represents malformed request errors (too long, violates policy).
	ErrorTypeBadPrompt
	// ErrorTypeCancelled represents cancellation of the caller's context.
	ErrorTypeCancelled
	// ErrorTypeUnknown represents default for unclassified errors.
	ErrorTypeUnknown

	// ErrorTypeServiceUnavailable is emitted once the retry budget is exhausted.
	ErrorTypeServiceUnavailable
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeMalformedResponse:
		return "malformed_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeCancelled:
		return "cancelled"
	case ErrorTypeUnknown:
		return "unknown"
	case ErrorTypeServiceUnavailable:
		return "service_unavailable"
	default:
		return "invalid"
	}
}

// Error represents a classified LLM error.
type Error struct {
	Err        error     // Wrapped underlying error
	Message    string    // Human-readable error message
	Type       ErrorType // Classified error type
	StatusCode int       // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("LLM error (%s): %s", e.Type.String(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("LLM error (%s): %v", e.Type.String(), e.Err)
	}
	return fmt.Sprintf("LLM error (%s): status %d", e.Type.String(), e.StatusCode)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the error class may be retried. Everything is
// retryable unless explicitly listed.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeAuth, ErrorTypeBadPrompt, ErrorTypeCancelled, ErrorTypeServiceUnavailable:
		return false
	default:
		return true
	}
}

// Is checks if an error is of a specific type.
func Is(err error, errorType ErrorType) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == errorType
	}
	return false
}

// TypeOf returns the error type of an error, or ErrorTypeUnknown if not classified.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// NewError creates a new classified LLM error.
func NewError(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// NewErrorWithStatus creates a new classified LLM error with HTTP status.
func NewErrorWithStatus(errorType ErrorType, statusCode int, message string) *Error {
	return &Error{Type: errorType, StatusCode: statusCode, Message: message}
}

// NewErrorWithCause creates a new classified LLM error wrapping another error.
func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{Type: errorType, Err: cause, Message: message}
}

// NewServiceUnavailableError wraps the last failure once retries are exhausted.
func NewServiceUnavailableError(cause error, attempts int) *Error {
	return &Error{
		Type:    ErrorTypeServiceUnavailable,
		Err:     cause,
		Message: fmt.Sprintf("service unavailable after %d attempts: %v", attempts, cause),
	}
}

// IsServiceUnavailable checks if the error indicates exhausted retries.
func IsServiceUnavailable(err error) bool {
	return Is(err, ErrorTypeServiceUnavailable)
}

// Classify returns err as a classified *Error. Already classified errors are
// returned unchanged; others are sorted by context state, status code and
// message text.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}
	if errors.Is(err, context.Canceled) {
		return NewErrorWithCause(ErrorTypeCancelled, err, "")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCause(ErrorTypeTransient, err, "")
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "401", "403", "unauthorized", "invalid api key", "authentication"):
		return NewErrorWithCause(ErrorTypeAuth, err, "")
	case containsAny(msg, "429", "rate limit", "quota", "overloaded"):
		return NewErrorWithCause(ErrorTypeRateLimit, err, "")
	case containsAny(msg, "prompt is too long", "context length", "content policy"):
		return NewErrorWithCause(ErrorTypeBadPrompt, err, "")
	case containsAny(msg, "500", "502", "503", "504", "eof", "connection reset", "timeout", "unavailable"):
		return NewErrorWithCause(ErrorTypeTransient, err, "")
	default:
		return NewErrorWithCause(ErrorTypeUnknown, err, "")
	}
}

// StatusType maps an HTTP status code to an error type.
func StatusType(status int) ErrorType {
	switch {
	case status == 401 || status == 403:
		return ErrorTypeAuth
	case status == 429:
		return ErrorTypeRateLimit
	case status == 400 || status == 413:
		return ErrorTypeBadPrompt
	case status >= 500:
		return ErrorTypeTransient
	default:
		return ErrorTypeUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// SanitizePrompt shortens a large prompt for logging to its first and last
// portions plus a hash of the full content.
func SanitizePrompt(prompt string, maxChars int) string {
	if len(prompt) <= maxChars {
		return prompt
	}
	halfMax := maxChars / 2
	if halfMax < 100 {
		halfMax = 100
	}
	if 2*halfMax >= len(prompt) {
		return prompt
	}
	hash := sha256.Sum256([]byte(prompt))
	return fmt.Sprintf("%s...[%d chars, hash:%x]...%s",
		prompt[:halfMax], len(prompt), hash[:8], prompt[len(prompt)-halfMax:])
}

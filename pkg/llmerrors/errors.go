// Package llmerrors provides structured error classification for model provider calls.
package llmerrors

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// ErrorType represents different categories of provider errors.
type ErrorType int8

const (
	// ErrorTypeRateLimit represents rate limiting errors (429, quota exceeded).
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents transient errors (5xx, EOF, connection reset, timeout).
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents HTTP 200 but no content.
	ErrorTypeEmptyResponse
	// ErrorTypeAuth represents authentication errors (401/403, bad API key).
	ErrorTypeAuth
	// ErrorTypeBadPrompt represents malformed request errors (too long, violates policy).
	ErrorTypeBadPrompt
	// ErrorTypeUnknown represents default for unclassified errors.
	ErrorTypeUnknown
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
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error represents a classified provider error.
type Error struct {
	Err        error     // Wrapped underlying error
	Message    string    // Human-readable error message
	BodyStub   string    // First portion of response body (guards PII)
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

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
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

// NewError creates a new classified error.
func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
	}
}

// NewErrorWithCause creates a new classified error wrapping another error.
func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{
		Type:    errorType,
		Err:     cause,
		Message: message,
	}
}

// TypeForStatus maps an HTTP status code onto the taxonomy.
func TypeForStatus(status int) ErrorType {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorTypeAuth
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case status == http.StatusBadRequest || status == http.StatusRequestEntityTooLarge ||
		status == http.StatusUnprocessableEntity || status == http.StatusNotFound:
		return ErrorTypeBadPrompt
	case status >= 500:
		return ErrorTypeTransient
	default:
		return ErrorTypeUnknown
	}
}

// ClassifyMessage guesses a type from an error string when no status code is available.
func ClassifyMessage(msg string) ErrorType {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "unauthorized") || strings.Contains(m, "api key") ||
		strings.Contains(m, "permission denied") || strings.Contains(m, "forbidden"):
		return ErrorTypeAuth
	case strings.Contains(m, "rate limit") || strings.Contains(m, "quota") ||
		strings.Contains(m, "too many requests") || strings.Contains(m, "resource_exhausted"):
		return ErrorTypeRateLimit
	case strings.Contains(m, "context deadline exceeded") || strings.Contains(m, "timeout") ||
		strings.Contains(m, "connection refused") || strings.Contains(m, "connection reset") ||
		strings.Contains(m, "eof") || strings.Contains(m, "unavailable"):
		return ErrorTypeTransient
	case strings.Contains(m, "too long") || strings.Contains(m, "invalid") ||
		strings.Contains(m, "not found"):
		return ErrorTypeBadPrompt
	default:
		return ErrorTypeUnknown
	}
}

//nolint:gochecknoglobals // compiled pattern
var statusPattern = regexp.MustCompile(`(?i)(?:status(?: code)?[: ]+|HTTP |\b)([1-5]\d\d)\b`)

// ExtractStatusCode pulls an HTTP status out of an SDK error string, or returns 0.
func ExtractStatusCode(msg string) int {
	m := statusPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	code, err := strconv.Atoi(m[1])
	if err != nil || code < 400 {
		return 0
	}
	return code
}

// Classify converts a provider failure into an *Error. statusCode may be 0 when
// the SDK did not expose one; it is then recovered from the message if possible.
// Already-classified errors are returned unchanged.
func Classify(err error, statusCode int, provider string) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewErrorWithCause(ErrorTypeTransient, err, provider+": request timeout")
	case errors.Is(err, context.Canceled):
		return NewErrorWithCause(ErrorTypeTransient, err, provider+": request canceled")
	}

	if statusCode == 0 {
		statusCode = ExtractStatusCode(err.Error())
	}
	if statusCode != 0 {
		if t := TypeForStatus(statusCode); t != ErrorTypeUnknown {
			return &Error{
				Type:       t,
				StatusCode: statusCode,
				Err:        err,
				Message:    fmt.Sprintf("%s: status %d: %v", provider, statusCode, err),
			}
		}
	}
	return NewErrorWithCause(ClassifyMessage(err.Error()), err, fmt.Sprintf("%s: %v", provider, err))
}

// SanitizePrompt creates a safe representation of a prompt for logging.
// For large prompts, it returns first/last portions plus a hash of the full content.
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

	first := prompt[:halfMax]
	last := prompt[len(prompt)-halfMax:]

	hash := sha256.Sum256([]byte(prompt))
	hashStr := fmt.Sprintf("%x", hash)[:16]

	return fmt.Sprintf("%s...[%d chars, hash:%s]...%s",
		first, len(prompt), hashStr, last)
}

package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeParse      ErrorType = "parse"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeServer     ErrorType = "server_error"
	ErrorTypeFilesystem ErrorType = "filesystem"
	ErrorTypeCancelled  ErrorType = "cancelled"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// Error represents a pipeline error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// ErrCancelled is the distinguished stop signal raised when the user requests
// cancellation. It stops the batch cleanly and is never counted as a failure.
var ErrCancelled = &Error{Type: ErrorTypeCancelled, Message: "stopped by user"}

// IsCancelled reports whether err is the user-requested stop signal. Errors
// that carry a cancelled context anywhere in their chain count too, so a
// fetch aborted mid-flight is treated as cancellation rather than a failure.
func IsCancelled(err error) bool {
	var e *Error
	if errors.As(err, &e) && e.Type == ErrorTypeCancelled {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServer:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParse, ErrorTypeFilesystem, ErrorTypeCancelled:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}

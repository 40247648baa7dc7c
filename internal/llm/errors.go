package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrRetriesExhausted is returned when every allowed attempt was rate limited.
	ErrRetriesExhausted = errors.New("exceeded max retries due to rate limiting")
	// ErrSchemaViolation is returned when structured output cannot be parsed or validated.
	ErrSchemaViolation = errors.New("structured output violates schema")
)

// RateLimitError reports an HTTP 429 from the model provider. It is the only retryable error.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return "rate limited"
	}
	return "rate limited: " + e.Message
}

// APIError is a non-retryable error response from the model provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model api returned %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited reports whether err is, or wraps, a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

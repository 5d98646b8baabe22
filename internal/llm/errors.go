package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Gateway error codes.
const (
	CodeInvalidPrompt      = "INVALID_PROMPT"
	CodeEmptyPrompt        = "EMPTY_PROMPT"
	CodePromptTooLong      = "PROMPT_TOO_LONG"
	CodeRequestTimeout     = "REQUEST_TIMEOUT"
	CodeEmptyResponse      = "EMPTY_RESPONSE"
	CodeEmptyContent       = "EMPTY_CONTENT"
	CodeInvalidAPIKey      = "INVALID_API_KEY"
	CodeQuotaExceeded      = "QUOTA_EXCEEDED"
	CodeContentBlocked     = "CONTENT_BLOCKED"
	CodeAPIError           = "API_ERROR"
	CodeLLMCallFailed      = "LLM_CALL_FAILED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

var nonRetryable = map[string]bool{
	CodeInvalidAPIKey:  true,
	CodeInvalidPrompt:  true,
	CodePromptTooLong:  true,
	CodeEmptyPrompt:    true,
	CodeContentBlocked: true,
}

// Error is a classified model gateway failure.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	Details    map[string]interface{}
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	return !nonRetryable[e.Code]
}

func newError(code string, status int, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, StatusCode: status, Err: cause, Details: map[string]interface{}{}}
}

// RateLimitError indicates a provider returned HTTP 429.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. If retryAfterSecs is 0, defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}

// Classify maps a provider error onto a gateway error code.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(CodeRequestTimeout, http.StatusRequestTimeout, "model request timed out", err)
	}
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		e := newError(CodeQuotaExceeded, http.StatusTooManyRequests, err.Error(), err)
		e.Details["retryAfterSeconds"] = int(rlErr.RetryAfter.Seconds())
		return e
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key"):
		return newError(CodeInvalidAPIKey, http.StatusUnauthorized, "invalid model provider API key", err)
	case strings.Contains(msg, "quota"), strings.Contains(msg, "rate limit"):
		return newError(CodeQuotaExceeded, http.StatusTooManyRequests, "model provider quota exceeded", err)
	case strings.Contains(msg, "safety"), strings.Contains(msg, "blocked"):
		return newError(CodeContentBlocked, http.StatusBadRequest, "content blocked by model safety filters", err)
	default:
		return newError(CodeAPIError, http.StatusInternalServerError, err.Error(), err)
	}
}

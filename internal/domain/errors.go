package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidTier        = errors.New("invalid subscription tier")
	ErrInvalidEnvironment = errors.New("invalid key environment")
	ErrAPIKeyNotFound     = errors.New("api key not found")
	ErrWebhookNotFound    = errors.New("webhook not found")
	ErrInvalidWebhookURL  = errors.New("invalid webhook target url")
	ErrNoWebhookEvents    = errors.New("at least one webhook event is required")
	ErrUnknownEvent       = errors.New("unknown webhook event")
	ErrQuotaExceeded      = errors.New("monthly quota exceeded")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrInvalidFieldSpec   = errors.New("invalid output schema field")
	ErrUnsupportedFormat  = errors.New("unsupported export format")
	ErrInvalidKeyName     = errors.New("api key name must be 1-100 characters")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidRequestID   = errors.New("invalid request id")
	ErrArchiveDisabled    = errors.New("result archive is disabled")
)

// Governance error codes.
const (
	CodeMissingAPIKey       = "MISSING_API_KEY"
	CodeInvalidAPIKeyFormat = "INVALID_API_KEY_FORMAT"
	CodeInvalidAPIKey       = "INVALID_API_KEY"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeAccountSuspended    = "ACCOUNT_SUSPENDED"
	CodeUsageLimitExceeded  = "USAGE_LIMIT_EXCEEDED"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeAuthenticationError = "AUTHENTICATION_ERROR"
)

// GovernanceError is a rejection produced by authentication, quota or rate checks.
type GovernanceError struct {
	Code       string
	Message    string
	StatusCode int
	Details    map[string]interface{}
	Err        error
}

func (e *GovernanceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *GovernanceError) Unwrap() error {
	return e.Err
}

// NewGovernanceError builds a GovernanceError.
func NewGovernanceError(status int, code, msg string, details map[string]interface{}) *GovernanceError {
	return &GovernanceError{Code: code, Message: msg, StatusCode: status, Details: details}
}

// Pipeline error codes. Only the code is a stable contract.
const (
	CodeValidationError       = "VALIDATION_ERROR"
	CodeInvalidOutputSchema   = "INVALID_OUTPUT_SCHEMA"
	CodeEmptyOutputSchema     = "EMPTY_OUTPUT_SCHEMA"
	CodeSchemaTooLarge        = "SCHEMA_TOO_LARGE"
	CodeInvalidFieldType      = "INVALID_FIELD_TYPE"
	CodeInvalidDataSample     = "INVALID_DATA_SAMPLE"
	CodeEmptyDataSample       = "EMPTY_DATA_SAMPLE"
	CodeInvalidInputData      = "INVALID_INPUT_DATA"
	CodeEmptyInputData        = "EMPTY_INPUT_DATA"
	CodeInputTooLarge         = "INPUT_TOO_LARGE"
	CodePayloadTooLarge       = "PAYLOAD_TOO_LARGE"
	CodeInvalidSearchPlan     = "INVALID_SEARCH_PLAN"
	CodeEmptySearchPlan       = "EMPTY_SEARCH_PLAN"
	CodeInvalidResponseFormat = "INVALID_RESPONSE_FORMAT"
	CodeJSONParseError        = "JSON_PARSE_ERROR"
	CodeResponseParseError    = "RESPONSE_PARSE_ERROR"
	CodeInvalidSearchStep     = "INVALID_SEARCH_STEP"
	CodeLowConfidence         = "LOW_CONFIDENCE"
	CodeTooManyFields         = "TOO_MANY_FIELDS"
	CodeMissingSchemaFields   = "MISSING_SCHEMA_FIELDS"
	CodeExtraSchemaFields     = "EXTRA_SCHEMA_FIELDS"
	CodeDuplicateTargetKeys   = "DUPLICATE_TARGET_KEYS"
	CodeAllFieldsFailed       = "ALL_FIELDS_FAILED"
	CodeLLMError              = "LLM_ERROR"
	CodeServiceUnavailable    = "SERVICE_UNAVAILABLE"
	CodeUnexpectedArchitect   = "UNEXPECTED_ARCHITECT_ERROR"
	CodeUnexpectedExtractor   = "UNEXPECTED_EXTRACTOR_ERROR"
	CodeUnexpected            = "UNEXPECTED_ERROR"
	CodeLowOverallConfidence  = "LOW_OVERALL_CONFIDENCE"
	// CodeModelAuthError is the model provider rejecting our credentials,
	// distinct from a caller's INVALID_API_KEY.
	CodeModelAuthError = "MODEL_AUTH_ERROR"
)

// PipelineError is an expected failure of the parsing pipeline. It travels as a
// value inside stage results rather than as a Go error.
type PipelineError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Stage   PipelineStage          `json:"-"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPipelineError builds a PipelineError for the given stage.
func NewPipelineError(stage PipelineStage, code, msg string, details map[string]interface{}) *PipelineError {
	return &PipelineError{Code: code, Message: msg, Stage: stage, Details: details}
}

// WithDetail returns e with key set in its details.
func (e *PipelineError) WithDetail(key string, val interface{}) *PipelineError {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = val
	return e
}

var pipelineStatus = map[string]int{
	CodeValidationError:       http.StatusBadRequest,
	CodeInvalidOutputSchema:   http.StatusBadRequest,
	CodeEmptyOutputSchema:     http.StatusBadRequest,
	CodeSchemaTooLarge:        http.StatusBadRequest,
	CodeInvalidFieldType:      http.StatusBadRequest,
	CodeInvalidDataSample:     http.StatusBadRequest,
	CodeEmptyDataSample:       http.StatusBadRequest,
	CodeInvalidInputData:      http.StatusBadRequest,
	CodeEmptyInputData:        http.StatusBadRequest,
	CodeInputTooLarge:         http.StatusBadRequest,
	CodeInvalidSearchPlan:     http.StatusBadRequest,
	CodeEmptySearchPlan:       http.StatusBadRequest,
	CodePayloadTooLarge:       http.StatusRequestEntityTooLarge,
	CodeInvalidResponseFormat: http.StatusUnprocessableEntity,
	CodeJSONParseError:        http.StatusUnprocessableEntity,
	CodeResponseParseError:    http.StatusUnprocessableEntity,
	CodeInvalidSearchStep:     http.StatusUnprocessableEntity,
	CodeLowConfidence:         http.StatusUnprocessableEntity,
	CodeTooManyFields:         http.StatusUnprocessableEntity,
	CodeMissingSchemaFields:   http.StatusUnprocessableEntity,
	CodeExtraSchemaFields:     http.StatusUnprocessableEntity,
	CodeDuplicateTargetKeys:   http.StatusUnprocessableEntity,
	CodeAllFieldsFailed:       http.StatusUnprocessableEntity,
	CodeServiceUnavailable:    http.StatusServiceUnavailable,
	"REQUEST_TIMEOUT":         http.StatusServiceUnavailable,
	"QUOTA_EXCEEDED":          http.StatusTooManyRequests,
	"CONTENT_BLOCKED":         http.StatusBadRequest,
	"INVALID_PROMPT":          http.StatusBadRequest,
	"EMPTY_PROMPT":            http.StatusBadRequest,
	"PROMPT_TOO_LONG":         http.StatusBadRequest,
	CodeModelAuthError:        http.StatusInternalServerError,
}

// HTTPStatus returns the response status for the error's code.
func (e *PipelineError) HTTPStatus() int {
	if s, ok := pipelineStatus[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

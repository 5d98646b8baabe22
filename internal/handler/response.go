package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"parserator/internal/domain"
	"parserator/internal/logger"
	"parserator/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	var gErr *domain.GovernanceError
	if errors.As(err, &gErr) {
		return gErr.StatusCode, gErr.Code, gErr.Message
	}

	switch {
	case errors.Is(err, domain.ErrAPIKeyNotFound):
		return http.StatusNotFound, "API_KEY_NOT_FOUND", "api key not found"
	case errors.Is(err, domain.ErrWebhookNotFound):
		return http.StatusNotFound, "WEBHOOK_NOT_FOUND", "webhook not found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "forbidden"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials"
	case errors.Is(err, domain.ErrAccountInactive):
		return http.StatusForbidden, domain.CodeAccountSuspended, "account is suspended"
	case errors.Is(err, domain.ErrDuplicateEmail):
		return http.StatusConflict, "DUPLICATE_EMAIL", "email already registered"
	case errors.Is(err, domain.ErrWeakPassword):
		return http.StatusBadRequest, "WEAK_PASSWORD", "password must be at least 8 characters"
	case errors.Is(err, domain.ErrInvalidTier):
		return http.StatusBadRequest, "INVALID_TIER", "tier must be one of free, pro, enterprise"
	case errors.Is(err, domain.ErrInvalidEnvironment):
		return http.StatusBadRequest, "INVALID_ENVIRONMENT", "environment must be live or test"
	case errors.Is(err, domain.ErrInvalidKeyName):
		return http.StatusBadRequest, "INVALID_KEY_NAME", "api key name must be 1-100 characters"
	case errors.Is(err, domain.ErrInvalidWebhookURL):
		return http.StatusBadRequest, "INVALID_WEBHOOK_URL", "targetUrl must be an absolute http or https url"
	case errors.Is(err, domain.ErrNoWebhookEvents):
		return http.StatusBadRequest, "NO_WEBHOOK_EVENTS", "at least one event is required"
	case errors.Is(err, domain.ErrUnknownEvent):
		return http.StatusBadRequest, "UNKNOWN_EVENT", "unknown webhook event"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", "format must be csv or xlsx"
	case errors.Is(err, domain.ErrInvalidRequestID):
		return http.StatusBadRequest, "INVALID_REQUEST_ID", "requestId must be 1-128 letters, digits, '_' or '-'"
	case errors.Is(err, domain.ErrArchiveDisabled):
		return http.StatusNotFound, "ARCHIVE_DISABLED", "result archiving is not enabled"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests, domain.CodeUsageLimitExceeded, "monthly usage limit exceeded for your tier"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, domain.CodeRateLimitExceeded, "rate limit exceeded, slow down"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// extractAccountID reads the authenticated account from the request context.
// Returns false if it is missing (error response already written).
func extractAccountID(c *gin.Context) (uuid.UUID, bool) {
	accountID, err := middleware.GetAccountID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing account context")
		return uuid.Nil, false
	}
	return accountID, true
}

// parseIDParam parses a uuid path parameter, writing a 400 on failure.
func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		logger.Error("handler: internal error", "request_id", middleware.GetRequestID(c), "path", c.FullPath(), "error", err)
	}
	RespondError(c, status, code, msg)
}

package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"parserator/internal/domain"
	"parserator/internal/service"
)

const (
	ContextKeyPrincipal = "principal"
	contextKeyOutcome   = "governance_outcome"
)

const (
	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRateReset     = "X-RateLimit-Reset"
	HeaderMonthlyLimit  = "X-Monthly-Limit"
	HeaderRetryAfter    = "Retry-After"
)

// APIKeyAuth authenticates the API key, admits the request against the
// account's quota and rate limits, and settles usage once the handler returns.
func APIKeyAuth(governance service.GovernanceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()

		principal, err := governance.Authenticate(ctx, c.GetHeader("Authorization"))
		if err != nil {
			abortGovernance(c, err)
			return
		}

		admission, err := governance.Admit(ctx, principal)
		if admission != nil {
			setLimitHeaders(c, admission)
		}
		if err != nil {
			abortGovernance(c, err)
			return
		}

		c.Set(ContextKeyPrincipal, principal)
		c.Set(ContextKeyAccountID, principal.Account.ID)

		// A panicking handler still releases its reservation.
		defer func() {
			rec := recover()
			outcome := collectOutcome(c, start)
			if rec != nil {
				outcome.StatusCode = http.StatusInternalServerError
			}
			governance.Settle(admission, outcome)
			if rec != nil {
				panic(rec)
			}
		}()
		c.Next()
	}
}

func collectOutcome(c *gin.Context, start time.Time) service.Outcome {
	outcome := service.Outcome{
		StatusCode:       c.Writer.Status(),
		RequestID:        GetRequestID(c),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	if v, ok := c.Get(contextKeyOutcome); ok {
		if reported, ok := v.(service.Outcome); ok {
			outcome.TokensUsed = reported.TokensUsed
			outcome.Confidence = reported.Confidence
		}
	}
	return outcome
}

// APIKeyAuthenticate authenticates the API key without reserving quota or
// counting against the rate window. Used by read-only account endpoints.
func APIKeyAuthenticate(governance service.GovernanceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := governance.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			abortGovernance(c, err)
			return
		}
		c.Set(ContextKeyPrincipal, principal)
		c.Set(ContextKeyAccountID, principal.Account.ID)
		c.Next()
	}
}

// ReportOutcome records token usage and confidence for the usage record
// APIKeyAuth writes when the request settles.
func ReportOutcome(c *gin.Context, tokensUsed int, confidence float64) {
	c.Set(contextKeyOutcome, service.Outcome{TokensUsed: tokensUsed, Confidence: confidence})
}

// GetPrincipal returns the principal set by APIKeyAuth.
func GetPrincipal(c *gin.Context) (*domain.Principal, error) {
	val, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return nil, domain.ErrUnauthorized
	}
	p, ok := val.(*domain.Principal)
	if !ok || p == nil {
		return nil, domain.ErrUnauthorized
	}
	return p, nil
}

func setLimitHeaders(c *gin.Context, admission *service.Admission) {
	if admission.Principal != nil {
		c.Header(HeaderRateLimit, strconv.Itoa(admission.Principal.Limits.RequestsPerMinute))
	}
	if u := admission.Usage; u != nil {
		c.Header(HeaderRateRemaining, strconv.Itoa(u.Remaining()))
		c.Header(HeaderRateReset, u.ResetAt().UTC().Format(time.RFC3339))
		c.Header(HeaderMonthlyLimit, strconv.Itoa(u.Limit))
	}
}

func abortGovernance(c *gin.Context, err error) {
	var gErr *domain.GovernanceError
	if !errors.As(err, &gErr) {
		abortError(c, http.StatusInternalServerError, domain.CodeAuthenticationError, "authentication service error", nil)
		return
	}
	if gErr.StatusCode == http.StatusTooManyRequests {
		c.Header(HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(gErr)))
	}
	abortError(c, gErr.StatusCode, gErr.Code, gErr.Message, gErr.Details)
}

// retryAfterSeconds reads the rate limit hint, or the time until the monthly
// reset for quota rejections.
func retryAfterSeconds(gErr *domain.GovernanceError) int {
	if v, ok := gErr.Details["retryAfterSeconds"].(int); ok && v > 0 {
		return v
	}
	if s, ok := gErr.Details["resetAt"].(string); ok {
		if reset, err := time.Parse(time.RFC3339, s); err == nil {
			if secs := int(time.Until(reset).Seconds()); secs > 0 {
				return secs
			}
		}
	}
	return 60
}

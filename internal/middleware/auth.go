package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"parserator/internal/domain"
	"parserator/internal/service"
)

const (
	ContextKeyAccountID = "account_id"
	ContextKeyEmail     = "email"
	ContextKeyTier      = "tier"
	ContextKeyClaims    = "claims"
)

// AuthMiddleware returns Gin middleware that validates dashboard JWTs and
// injects the account context.
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abortError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid authorization header", nil)
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := authService.ValidateToken(token)
		if err != nil {
			abortError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token", nil)
			return
		}

		c.Set(ContextKeyAccountID, claims.AccountID)
		c.Set(ContextKeyEmail, claims.Email)
		c.Set(ContextKeyTier, string(claims.Tier))
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetAccountID extracts the account ID set by AuthMiddleware or APIKeyAuth.
func GetAccountID(c *gin.Context) (uuid.UUID, error) {
	val, exists := c.Get(ContextKeyAccountID)
	if !exists {
		return uuid.Nil, domain.ErrUnauthorized
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return id, nil
}

// GetRequestID returns the request id set by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

func abortError(c *gin.Context, status int, code, msg string, details map[string]interface{}) {
	body := gin.H{"code": code, "message": msg}
	if len(details) > 0 {
		body["details"] = details
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": body})
}

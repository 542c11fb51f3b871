package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys for caller identity
const (
	ContextKeyClientID = "client_id"
	ContextKeyRole     = "client_role"
)

// Middleware authenticates a request by JWT bearer token or X-API-Key
// header. Either manager may be nil to disable that scheme.
func Middleware(tokens *TokenManager, apiKeys *APIKeyManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKeys != nil {
			if key := c.GetHeader("X-API-Key"); key != "" {
				role, err := apiKeys.Verify(key)
				if err != nil {
					abortAuth(c, ErrUnauthorized)
					return
				}
				c.Set(ContextKeyClientID, "api-key")
				c.Set(ContextKeyRole, role)
				c.Next()
				return
			}
		}

		if tokens == nil {
			abortAuth(c, ErrUnauthorized)
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortAuth(c, ErrUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortAuth(c, ErrInvalidToken)
			return
		}

		claims, err := tokens.ValidateToken(parts[1])
		if err != nil {
			authErr, ok := err.(AuthError)
			if !ok {
				authErr = ErrInvalidToken
			}
			abortAuth(c, authErr)
			return
		}

		c.Set(ContextKeyClientID, claims.ClientID)
		c.Set(ContextKeyRole, claims.Role)
		c.Next()
	}
}

// RequireRole rejects callers whose role does not match. Operators pass
// reader checks.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got, _ := c.Get(ContextKeyRole)
		current, _ := got.(string)
		if current == role || current == RoleOperator {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   ErrForbidden.Code,
			"message": ErrForbidden.Message,
		})
	}
}

func abortAuth(c *gin.Context, err AuthError) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   err.Code,
		"message": err.Message,
	})
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fleettemp/services"
)

// ClaimsKey is the gin context key holding *services.Claims.
const ClaimsKey = "claims"

// RequireAuth rejects requests without a valid "Authorization: Bearer" token.
func RequireAuth(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := auth.ValidateToken(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

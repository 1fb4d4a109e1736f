package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/riverside-fc/backend/internal/auth"
	"github.com/riverside-fc/backend/pkg/response"
)

// ContextAdminEmail is the key for the admin's email in gin context.
const ContextAdminEmail = "admin_email"

// JWT returns a middleware that validates the bearer token and stores the
// admin's ID (auth.ContextAdminID) and email in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Unauthorized(c, "missing or invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(auth.ContextAdminID, claims.AdminID)
		c.Set(ContextAdminEmail, claims.Email)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/riverside-fc/backend/internal/ratelimit"
	"github.com/riverside-fc/backend/pkg/response"
)

// staticPrefixes are never rate limited.
var staticPrefixes = []string{"/static/", "/assets/", "/images/", "/favicon", "/robots.txt"}

// KeyFunc picks the limiter key for a request.
type KeyFunc func(c *gin.Context) string

// ClientIPKey keys requests by client IP.
func ClientIPKey(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// RateLimit applies policy per key to every non-static request.
func RateLimit(limiter *ratelimit.Limiter, policy ratelimit.Policy, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ClientIPKey
	}
	limit := strconv.Itoa(policy.MaxAttempts)
	return func(c *gin.Context) {
		if isStatic(c.Request.URL.Path) {
			c.Next()
			return
		}
		d := limiter.Check(key(c), policy)
		c.Header("X-RateLimit-Limit", limit)
		if !d.Allowed {
			c.Header("X-RateLimit-Remaining", "0")
			response.TooManyRequests(c, d.Remaining, "You have exceeded the rate limit. Please try again in "+ratelimit.FormatRemainingTime(d.Remaining)+".")
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.AttemptsLeft))
		c.Next()
	}
}

func isStatic(path string) bool {
	for _, p := range staticPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

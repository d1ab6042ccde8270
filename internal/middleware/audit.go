package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/referral-api/internal/service/audit"
)

// AuditContext makes the client address available to audit entries written while
// serving the request.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := audit.WithClientIP(c.Request.Context(), c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

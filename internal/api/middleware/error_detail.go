package middleware

import "github.com/gin-gonic/gin"

// ContextKeyErrorDetail marks requests whose error responses may carry the wrapped cause.
const ContextKeyErrorDetail = "errorDetail"

// ErrorDetail enables the "detail" field of error responses. It is switched off in production.
func ErrorDetail(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextKeyErrorDetail, enabled)
		c.Next()
	}
}

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "budgetbuddy/internal/errors"
)

// ErrServiceKeyNotConfigured is returned when internal endpoints are hit
// without INTERNAL_API_KEY set.
var ErrServiceKeyNotConfigured = &apperrors.AppError{
	Code:       "INTERNAL_API_DISABLED",
	Message:    "Internal endpoints are not configured",
	StatusCode: http.StatusServiceUnavailable,
}

// ServiceKeyMiddleware guards service-to-service endpoints, such as the
// monthly report trigger, with the X-API-Key header.
func ServiceKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithError(c, ErrServiceKeyNotConfigured)
			return
		}
		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or missing API key"))
			return
		}
		c.Next()
	}
}

package errors

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitError represents a standardized 429 Too Many Requests response.
type RateLimitError struct {
	Error      string `json:"error"`
	RetryAfter int64  `json:"retry_after_seconds"`
}

// AbortWithRateLimit sends a 429 response with the RateLimitError and aborts the request.
func AbortWithRateLimit(c *gin.Context, retryAfter time.Duration) {
	seconds := int64(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.FormatInt(seconds, 10))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, &RateLimitError{
		Error:      "too many requests",
		RetryAfter: seconds,
	})
}

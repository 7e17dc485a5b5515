package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError is the body of every plain error response: {error, details?}.
// Statuses with extra fields (402, 403, 429) have their own types.
type APIError struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func abort(c *gin.Context, status int, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, &APIError{Error: message, Details: details})
}

func AbortWithUnauthorized(c *gin.Context, message string, details map[string]interface{}) {
	abort(c, http.StatusUnauthorized, message, details)
}

func AbortWithNotFound(c *gin.Context, message string, details map[string]interface{}) {
	abort(c, http.StatusNotFound, message, details)
}

// AbortWithConflict is used for duplicate payments, grants and listings, and for
// status callbacks that would move an item backwards.
func AbortWithConflict(c *gin.Context, message string, details map[string]interface{}) {
	abort(c, http.StatusConflict, message, details)
}

// AbortWithInternal hides the cause from the client; callers log it first.
func AbortWithInternal(c *gin.Context, message string, details map[string]interface{}) {
	abort(c, http.StatusInternalServerError, message, details)
}

// Internal writes a 500 without aborting, for handlers that have already
// committed to a response path.
func Internal(c *gin.Context, message string, details map[string]interface{}) {
	c.JSON(http.StatusInternalServerError, &APIError{Error: message, Details: details})
}

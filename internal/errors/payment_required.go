package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PaymentRequiredError is returned when the caller does not hold enough credits.
type PaymentRequiredError struct {
	Error     string `json:"error"`
	UIMessage string `json:"uiMessage"`
	Required  int64  `json:"required"`
	Available int64  `json:"available"`
}

// AbortWithPaymentRequired sends a 402 Payment Required response and aborts the request.
func AbortWithPaymentRequired(c *gin.Context, err *PaymentRequiredError) {
	c.AbortWithStatusJSON(http.StatusPaymentRequired, err)
}

// InsufficientCredits creates a PaymentRequiredError for a research submission.
func InsufficientCredits(required, available int64) *PaymentRequiredError {
	return &PaymentRequiredError{
		Error:     "insufficient credits",
		UIMessage: "You don't have enough credits for this research. Buy more credits to continue.",
		Required:  required,
		Available: available,
	}
}

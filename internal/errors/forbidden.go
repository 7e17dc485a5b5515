package errors

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ForbiddenReason represents machine-readable reason codes for 403 errors.
type ForbiddenReason string

const (
	// Demo mode
	ReasonDemoDailyLimit ForbiddenReason = "demo_daily_limit"

	// Access Control
	ReasonResearchNotOwned ForbiddenReason = "research_not_owned"
)

// ForbiddenError represents a standardized 403 Forbidden response.
type ForbiddenError struct {
	Error     string                 `json:"error"`             // Technical error message (for logs)
	UIMessage string                 `json:"uiMessage"`         // User-friendly message (for UI display)
	Reason    ForbiddenReason        `json:"reason"`            // Machine-readable reason code
	Details   map[string]interface{} `json:"details,omitempty"` // Optional context data
}

// NewForbiddenError creates a new ForbiddenError with the given parameters.
func NewForbiddenError(reason ForbiddenReason, errorMsg, uiMessage string, details map[string]interface{}) *ForbiddenError {
	return &ForbiddenError{
		Error:     errorMsg,
		UIMessage: uiMessage,
		Reason:    reason,
		Details:   details,
	}
}

// AbortWithForbidden sends a 403 response with the ForbiddenError and aborts the request.
func AbortWithForbidden(c *gin.Context, err *ForbiddenError) {
	c.AbortWithStatusJSON(http.StatusForbidden, err)
}

// DemoDailyLimit creates a ForbiddenError for an exhausted demo quota.
func DemoDailyLimit(used, limit int64, resetsAt time.Time) *ForbiddenError {
	return NewForbiddenError(
		ReasonDemoDailyLimit,
		"Demo research limit reached for this IP address",
		"You've used your free demo research for today. Connect a wallet to continue.",
		map[string]interface{}{
			"used":      used,
			"limit":     limit,
			"resets_at": resetsAt.UTC().Format(time.RFC3339),
		},
	)
}

// ResearchNotOwned creates a ForbiddenError for acting on someone else's research.
func ResearchNotOwned(researchID string) *ForbiddenError {
	return NewForbiddenError(
		ReasonResearchNotOwned,
		"Forbidden: You don't own this research",
		"You don't have permission to modify this research.",
		map[string]interface{}{
			"research_id": researchID,
		},
	)
}

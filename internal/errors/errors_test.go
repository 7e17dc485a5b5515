package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bindTarget struct {
	Title string `json:"title" binding:"required"`
	Depth string `json:"depth" binding:"required,oneof=simple full max"`
}

func TestValidationFailed_ReportsFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	var target bindTarget
	err := json.Unmarshal([]byte(`{"depth":"huge"}`), &target)
	require.NoError(t, err)
	err = binding.Validator.ValidateStruct(&target)
	require.Error(t, err)

	ValidationFailed(c, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Error   string `json:"error"`
		Details struct {
			Fields map[string]string `json:"fields"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Error)
	assert.Equal(t, "required", body.Details.Fields["title"])
	assert.Equal(t, "oneof=simple full max", body.Details.Fields["depth"])
}

func TestValidationDetails_NonValidatorError(t *testing.T) {
	details := ValidationDetails(assert.AnError)
	assert.Equal(t, assert.AnError.Error(), details["body"])
}

func TestDemoDailyLimit(t *testing.T) {
	resets := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := DemoDailyLimit(1, 1, resets)

	assert.Equal(t, ReasonDemoDailyLimit, err.Reason)
	assert.Equal(t, "2026-01-02T03:04:05Z", err.Details["resets_at"])
}

func TestAbortWithRateLimit_SetsRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	AbortWithRateLimit(c, 1500*time.Millisecond)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.True(t, c.IsAborted())
}

func TestAbortHelpers_WriteErrorBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		abort  func(c *gin.Context)
		status int
	}{
		{"unauthorized", func(c *gin.Context) { AbortWithUnauthorized(c, "nope", nil) }, http.StatusUnauthorized},
		{"not found", func(c *gin.Context) { AbortWithNotFound(c, "nope", nil) }, http.StatusNotFound},
		{"conflict", func(c *gin.Context) { AbortWithConflict(c, "nope", map[string]interface{}{"tx_hash": "0x1"}) }, http.StatusConflict},
		{"internal", func(c *gin.Context) { AbortWithInternal(c, "nope", nil) }, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			tt.abort(c)

			assert.Equal(t, tt.status, w.Code)
			assert.True(t, c.IsAborted())

			var body APIError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "nope", body.Error)
		})
	}
}

package email

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/reseich/reseich-api/internal/errors"
	"github.com/reseich/reseich-api/internal/logger"
	"github.com/reseich/reseich-api/internal/workflow"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, payload workflow.Payload) error
}

type Metrics interface {
	SideEffectFailed(kind string)
}

// Handler forwards outbound email requests to the workflow engine.
type Handler struct {
	dispatcher Dispatcher
	from       string
	metrics    Metrics
	logger     *logger.Logger
}

func NewHandler(dispatcher Dispatcher, from string, metrics Metrics, logger *logger.Logger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		from:       from,
		metrics:    metrics,
		logger:     logger.WithComponent("email"),
	}
}

type SendBody struct {
	To         string `json:"to" binding:"required,email"`
	Subject    string `json:"subject" binding:"required,max=300"`
	Content    string `json:"content" binding:"required"`
	ResearchID string `json:"research_id" binding:"omitempty,uuid"`
}

// Send handles POST /api/email/send. Delivery is asynchronous; a failure to
// queue is logged and the request still succeeds.
func (h *Handler) Send(c *gin.Context) {
	var body SendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}

	payload := workflow.NewEmailPayload(workflow.EmailPayload{
		To:         body.To,
		From:       h.from,
		Subject:    body.Subject,
		Content:    body.Content,
		ResearchID: body.ResearchID,
	})

	queued := true
	if err := h.dispatcher.Dispatch(c.Request.Context(), payload); err != nil {
		queued = false
		h.metrics.SideEffectFailed("email_dispatch")
		h.logger.WithContext(c.Request.Context()).Error("failed to queue email",
			slog.String("research_id", body.ResearchID),
			slog.String("error", err.Error()))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"queued":  queued,
	})
}

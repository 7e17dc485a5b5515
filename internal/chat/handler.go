package chat

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reseich/reseich-api/internal/auth"
	apierrors "github.com/reseich/reseich-api/internal/errors"
	"github.com/reseich/reseich-api/internal/logger"
	pgdb "github.com/reseich/reseich-api/internal/storage/pg/sqlc"
)

type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, logger *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.WithComponent("chat-handler"),
	}
}

type SendBody struct {
	Message       string `json:"message" binding:"required,min=1,max=5000"`
	SessionID     string `json:"session_id" binding:"omitempty,max=128"`
	WalletAddress string `json:"wallet_address"`
	IsDemo        bool   `json:"is_demo"`
}

// Send handles POST /api/chat/send.
func (h *Handler) Send(c *gin.Context) {
	var body SendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}

	caller, err := auth.Resolve(c, body.WalletAddress, body.IsDemo)
	if err != nil {
		apierrors.AbortWithBadRequest(c, "invalid wallet address", nil)
		return
	}

	msg, err := h.service.Send(c.Request.Context(), body.SessionID, body.Message, caller)
	if err != nil {
		h.logger.LogError(c.Request.Context(), err, "failed to send chat message")
		apierrors.AbortWithInternal(c, "failed to send message", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message_id": msg.ID,
		"session_id": msg.SessionID,
	})
}

type ReplyBody struct {
	Response string `json:"response" binding:"required"`
}

// StoreReply handles the workflow callback POST /api/chat/response/:id.
// The route is guarded by auth.RequireCallbackToken.
func (h *Handler) StoreReply(c *gin.Context) {
	var body ReplyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}

	reply, err := h.service.StoreReply(c.Request.Context(), c.Param("id"), body.Response)
	if err != nil {
		switch {
		case errors.Is(err, ErrMessageNotFound):
			apierrors.AbortWithNotFound(c, "message not found", map[string]interface{}{"message_id": c.Param("id")})
		case errors.Is(err, ErrNotUserMessage):
			apierrors.AbortWithBadRequest(c, err.Error(), nil)
		case errors.Is(err, ErrReplyExists):
			apierrors.AbortWithConflict(c, err.Error(), map[string]interface{}{"message_id": c.Param("id")})
		default:
			h.logger.LogError(c.Request.Context(), err, "failed to store chat reply")
			apierrors.AbortWithInternal(c, "failed to store reply", nil)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"reply_id": reply.ID,
	})
}

// GetReply handles GET /api/chat/response/:id.
func (h *Handler) GetReply(c *gin.Context) {
	reply, err := h.service.Reply(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			apierrors.AbortWithNotFound(c, "message not found", map[string]interface{}{"message_id": c.Param("id")})
			return
		}
		h.logger.LogError(c.Request.Context(), err, "failed to load chat reply")
		apierrors.AbortWithInternal(c, "failed to load reply", nil)
		return
	}

	if reply == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "ready": false, "response": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"ready":      true,
		"response":   reply.Content,
		"created_at": reply.CreatedAt,
	})
}

type messageView struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	IsUser    bool      `json:"is_user"`
	ReplyTo   *string   `json:"reply_to,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toView(m pgdb.ChatMessage) messageView {
	v := messageView{ID: m.ID.String(), Content: m.Content, IsUser: m.IsUser, CreatedAt: m.CreatedAt}
	if m.ReplyTo.Valid {
		s := m.ReplyTo.UUID.String()
		v.ReplyTo = &s
	}
	return v
}

// History handles GET /api/chat/sessions/:id.
func (h *Handler) History(c *gin.Context) {
	limit := int32(100)
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 500 {
		limit = int32(v)
	}

	msgs, err := h.service.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.logger.LogError(c.Request.Context(), err, "failed to load chat history")
		apierrors.AbortWithInternal(c, "failed to load history", nil)
		return
	}

	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, toView(m))
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": c.Param("id"),
		"messages":   views,
	})
}

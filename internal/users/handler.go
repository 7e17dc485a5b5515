package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reseich/reseich-api/internal/auth"
	apierrors "github.com/reseich/reseich-api/internal/errors"
	"github.com/reseich/reseich-api/internal/logger"
)

type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, logger *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.WithComponent("users-handler"),
	}
}

type EmailSettingsBody struct {
	WalletAddress      string `json:"wallet_address" binding:"required"`
	Email              string `json:"email" binding:"omitempty,email,max=320"`
	EmailNotifications bool   `json:"email_notifications"`
}

// UpdateEmailSettings handles POST /api/users/email-settings.
func (h *Handler) UpdateEmailSettings(c *gin.Context) {
	var body EmailSettingsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}

	wallet, err := auth.NormalizeWallet(body.WalletAddress)
	if err != nil {
		apierrors.AbortWithBadRequest(c, "invalid wallet address", map[string]interface{}{"wallet_address": body.WalletAddress})
		return
	}

	settings, err := h.service.UpdateEmailSettings(c.Request.Context(), wallet, body.Email, body.EmailNotifications)
	if err != nil {
		if errors.Is(err, ErrEmailRequired) {
			apierrors.AbortWithBadRequest(c, err.Error(), map[string]interface{}{
				"fields": map[string]interface{}{"email": "required"},
			})
			return
		}
		h.logger.LogError(c.Request.Context(), err, "failed to update email settings")
		apierrors.AbortWithInternal(c, "failed to update email settings", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"settings": settings,
	})
}

// GetEmailSettings handles GET /api/users/email-settings?wallet=.
func (h *Handler) GetEmailSettings(c *gin.Context) {
	wallet, err := auth.NormalizeWallet(c.Query("wallet"))
	if err != nil {
		apierrors.AbortWithBadRequest(c, "invalid wallet address", nil)
		return
	}

	settings, err := h.service.EmailSettings(c.Request.Context(), wallet)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			apierrors.AbortWithNotFound(c, "user not found", map[string]interface{}{"wallet_address": wallet})
			return
		}
		h.logger.LogError(c.Request.Context(), err, "failed to load email settings")
		apierrors.AbortWithInternal(c, "failed to load email settings", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"settings": settings,
	})
}

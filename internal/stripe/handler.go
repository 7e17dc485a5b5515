package stripe

import (
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reseich/reseich-api/internal/auth"
	"github.com/reseich/reseich-api/internal/errors"
	"github.com/reseich/reseich-api/internal/logger"
)

// Handler provides HTTP endpoints for Stripe integration.
// It handles two main operations:
// 1. Creating Checkout Sessions for credit packages
// 2. Processing webhook events from Stripe (public, signature-verified)
type Handler struct {
	logger  *logger.Logger
	service *Service
}

func NewHandler(service *Service, logger *logger.Logger) *Handler {
	return &Handler{
		logger:  logger.WithComponent("stripe_handler"),
		service: service,
	}
}

// CreateCheckoutSession generates a Stripe Checkout Session URL for a credit package.
//
// Endpoint: POST /api/stripe/checkout
//
// Request Body:
//
//	{
//	  "package_id": "researcher",
//	  "wallet_address": "0xabc..."
//	}
//
// Response (200 OK):
//
//	{
//	  "url": "https://checkout.stripe.com/c/pay/cs_test_..."
//	}
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context())

	var body struct {
		PackageID     string `json:"package_id" binding:"required"`
		WalletAddress string `json:"wallet_address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&body); err != nil {
		errors.ValidationFailed(c, err)
		return
	}

	wallet, err := auth.NormalizeWallet(body.WalletAddress)
	if err != nil {
		errors.BadRequest(c, "invalid wallet address", nil)
		return
	}

	// Determine redirect URLs from request origin
	origin := c.GetHeader("Origin")
	if origin == "" {
		origin = c.GetHeader("Referer")
	}
	if origin == "" {
		origin = "https://reseich.app"
	}

	sessionURL, err := h.service.CreateCheckoutSession(c.Request.Context(), wallet, body.PackageID, origin)
	if err != nil {
		if stderrors.Is(err, ErrUnknownPackage) || stderrors.Is(err, ErrNotForSale) {
			errors.BadRequest(c, err.Error(), map[string]interface{}{"package_id": body.PackageID})
			return
		}
		log.Error("failed to create checkout session",
			slog.String("wallet", wallet),
			slog.String("package_id", body.PackageID),
			slog.String("error", err.Error()))
		errors.Internal(c, "failed to create checkout session", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": sessionURL})
}

// HandleWebhook processes incoming Stripe webhook events.
//
// Endpoint: POST /api/stripe/webhook
// Authentication: None (signature verification in service)
//
// Error Handling:
// Always returns 200 OK to acknowledge receipt (prevents Stripe retries).
// Signature verification and processing failures are logged.
func (h *Handler) HandleWebhook(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context())

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Error("failed to read webhook payload", slog.String("error", err.Error()))
		errors.BadRequest(c, "invalid payload", nil)
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		log.Error("missing Stripe-Signature header")
		errors.BadRequest(c, "missing signature", nil)
		return
	}

	if err := h.service.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		log.Error("webhook processing failed", slog.String("error", err.Error()))
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

package credits

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/reseich/reseich-api/internal/auth"
	apierrors "github.com/reseich/reseich-api/internal/errors"
	"github.com/reseich/reseich-api/internal/logger"
	"github.com/shopspring/decimal"
)

type Handler struct {
	service *Service
	logger  *logger.Logger
}

func NewHandler(service *Service, logger *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.WithComponent("credits-handler"),
	}
}

type PurchaseBody struct {
	TransactionHash string          `json:"transaction_hash" binding:"required"`
	SEIAmount       decimal.Decimal `json:"sei_amount"`
	CreditsAmount   int64           `json:"credits_amount" binding:"required,gt=0"`
	WalletAddress   string          `json:"wallet_address" binding:"required"`
}

// Purchase handles POST /api/credits/purchase.
func (h *Handler) Purchase(c *gin.Context) {
	ctx := c.Request.Context()
	log := h.logger.WithContext(ctx)

	var body PurchaseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}

	wallet, err := auth.NormalizeWallet(body.WalletAddress)
	if err != nil {
		apierrors.AbortWithBadRequest(c, "invalid wallet address", map[string]interface{}{"wallet_address": body.WalletAddress})
		return
	}
	ctx = logger.WithWallet(ctx, wallet)

	res, err := h.service.Purchase(ctx, PurchaseRequest{
		TxHash:        body.TransactionHash,
		Wallet:        wallet,
		SEIAmount:     body.SEIAmount,
		CreditsAmount: body.CreditsAmount,
	})
	if err != nil {
		var payErr *PaymentError
		switch {
		case errors.Is(err, ErrDuplicateTransaction):
			apierrors.AbortWithConflict(c, "transaction already processed", map[string]interface{}{
				"transaction_hash": body.TransactionHash,
			})
		case errors.As(err, &payErr):
			apierrors.AbortWithBadRequest(c, payErr.Error(), map[string]interface{}{
				"transaction_hash": body.TransactionHash,
			})
		case errors.Is(err, ErrCreditsMismatch), errors.Is(err, ErrInvalidAmount):
			apierrors.AbortWithBadRequest(c, err.Error(), nil)
		default:
			log.LogError(ctx, err, "credit purchase failed")
			apierrors.AbortWithInternal(c, "failed to process credit purchase", nil)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"credits_added":  res.CreditsAdded,
		"balance":        res.Balance,
		"transaction_id": res.Transaction.ID,
	})
}

// Balance handles GET /api/credits/balance?wallet=.
func (h *Handler) Balance(c *gin.Context) {
	wallet, err := auth.NormalizeWallet(c.Query("wallet"))
	if err != nil {
		apierrors.AbortWithBadRequest(c, "invalid wallet address", nil)
		return
	}

	balance, err := h.service.Balance(c.Request.Context(), wallet)
	if err != nil {
		h.logger.LogError(c.Request.Context(), err, "failed to load balance")
		apierrors.AbortWithInternal(c, "failed to load balance", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"wallet":  wallet,
		"credits": balance,
	})
}

// Transactions handles GET /api/credits/transactions?wallet=&limit=.
func (h *Handler) Transactions(c *gin.Context) {
	wallet, err := auth.NormalizeWallet(c.Query("wallet"))
	if err != nil {
		apierrors.AbortWithBadRequest(c, "invalid wallet address", nil)
		return
	}

	limit := int32(50)
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 200 {
		limit = int32(v)
	}

	txs, err := h.service.History(c.Request.Context(), wallet, limit)
	if err != nil {
		h.logger.LogError(c.Request.Context(), err, "failed to list transactions")
		apierrors.AbortWithInternal(c, "failed to list transactions", nil)
		return
	}

	views := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, toView(tx))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": views,
	})
}

// Packages handles GET /api/credits/packages.
func (h *Handler) Packages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"packages":        h.service.Packages(),
		"credits_per_sei": h.service.pricing.CreditsPerSEI,
	})
}

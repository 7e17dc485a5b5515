package sei

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reseich/reseich-api/internal/auth"
	apierrors "github.com/reseich/reseich-api/internal/errors"
	"github.com/reseich/reseich-api/internal/logger"
	"github.com/shopspring/decimal"
)

type Handler struct {
	verifier *Verifier
	logger   *logger.Logger
}

func NewHandler(verifier *Verifier, logger *logger.Logger) *Handler {
	return &Handler{verifier: verifier, logger: logger}
}

// GetBalance handles GET /api/sei/balance/:wallet.
func (h *Handler) GetBalance(c *gin.Context) {
	wallet, err := auth.NormalizeWallet(c.Param("wallet"))
	if err != nil {
		apierrors.BadRequest(c, "invalid wallet address", nil)
		return
	}

	balance, err := h.verifier.Balance(c.Request.Context(), wallet)
	if err != nil {
		h.logger.LogError(c.Request.Context(), err, "failed to fetch SEI balance")
		apierrors.Internal(c, "failed to fetch balance", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"wallet_address": wallet,
		"balance_sei":    balance.String(),
	})
}

type gasEstimateQuery struct {
	From   string `form:"from" binding:"required"`
	To     string `form:"to" binding:"required"`
	Amount string `form:"amount" binding:"required"`
}

// EstimateGas handles GET /api/sei/gas-estimate?from=&to=&amount=.
func (h *Handler) EstimateGas(c *gin.Context) {
	var q gasEstimateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}

	from, errFrom := auth.NormalizeWallet(q.From)
	to, errTo := auth.NormalizeWallet(q.To)
	amount, errAmount := decimal.NewFromString(q.Amount)
	if errFrom != nil || errTo != nil || errAmount != nil || amount.IsNegative() {
		apierrors.BadRequest(c, "invalid from, to or amount", nil)
		return
	}

	quote, err := h.verifier.EstimateTransfer(c.Request.Context(), from, to, amount)
	if err != nil {
		h.logger.LogError(c.Request.Context(), err, "failed to estimate gas")
		apierrors.Internal(c, "failed to estimate gas", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "quote": quote})
}

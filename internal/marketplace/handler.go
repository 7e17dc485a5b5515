package marketplace

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
		logger:  logger.WithComponent("marketplace-handler"),
	}
}

type CreateListingBody struct {
	ResearchID    string          `json:"research_id" binding:"required,uuid"`
	PriceSEI      decimal.Decimal `json:"price_sei"`
	WalletAddress string          `json:"wallet_address" binding:"required"`
}

// CreateListing handles POST /api/marketplace/listings.
func (h *Handler) CreateListing(c *gin.Context) {
	ctx := c.Request.Context()

	var body CreateListingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}

	wallet, err := auth.NormalizeWallet(body.WalletAddress)
	if err != nil {
		apierrors.AbortWithBadRequest(c, "invalid wallet address", nil)
		return
	}

	listing, err := h.service.CreateListing(ctx, wallet, body.ResearchID, body.PriceSEI)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPrice), errors.Is(err, ErrResearchNotCompleted):
			apierrors.AbortWithBadRequest(c, err.Error(), nil)
		case errors.Is(err, ErrResearchNotFound):
			apierrors.AbortWithNotFound(c, "research not found", map[string]interface{}{"research_id": body.ResearchID})
		case errors.Is(err, ErrNotOwner):
			apierrors.AbortWithForbidden(c, apierrors.ResearchNotOwned(body.ResearchID))
		case errors.Is(err, ErrListingExists):
			apierrors.AbortWithConflict(c, err.Error(), map[string]interface{}{"research_id": body.ResearchID})
		default:
			h.logger.LogError(ctx, err, "failed to create listing")
			apierrors.AbortWithInternal(c, "failed to create listing", nil)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"listing": listing,
	})
}

// ListListings handles GET /api/marketplace/listings.
func (h *Handler) ListListings(c *gin.Context) {
	limit, offset := int32(20), int32(0)
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		limit = int32(v)
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		offset = int32(v)
	}

	rows, err := h.service.ListActive(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.LogError(c.Request.Context(), err, "failed to list listings")
		apierrors.AbortWithInternal(c, "failed to list listings", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"listings": rows,
	})
}

type SEIPaymentBody struct {
	ListingID       string          `json:"listing_id" binding:"required"`
	BuyerWallet     string          `json:"buyer_wallet"`
	SellerWallet    string          `json:"seller_wallet" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionHash string          `json:"transaction_hash"`
}

// PaySEI handles POST /api/payments/sei. Callers without buyer_wallet buy as
// demo visitors identified by IP.
func (h *Handler) PaySEI(c *gin.Context) {
	ctx := c.Request.Context()

	var body SEIPaymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}

	buyer, err := auth.Resolve(c, body.BuyerWallet, body.BuyerWallet == "")
	if err != nil {
		apierrors.AbortWithBadRequest(c, "invalid buyer wallet", nil)
		return
	}
	seller, err := auth.NormalizeWallet(body.SellerWallet)
	if err != nil {
		apierrors.AbortWithBadRequest(c, "invalid seller wallet", nil)
		return
	}

	res, err := h.service.Purchase(c.Request.Context(), PurchaseRequest{
		ListingID:    body.ListingID,
		Buyer:        buyer,
		SellerWallet: seller,
		Amount:       body.Amount,
		TxHash:       body.TransactionHash,
	})
	if err != nil {
		var payErr *PaymentError
		switch {
		case errors.Is(err, ErrListingNotFound):
			apierrors.AbortWithNotFound(c, "listing not found", map[string]interface{}{"listing_id": body.ListingID})
		case errors.Is(err, ErrAmountMismatch), errors.Is(err, ErrSellerMismatch), errors.Is(err, ErrOwnListing):
			apierrors.AbortWithBadRequest(c, err.Error(), nil)
		case errors.As(err, &payErr):
			apierrors.AbortWithBadRequest(c, payErr.Error(), map[string]interface{}{"transaction_hash": body.TransactionHash})
		case errors.Is(err, ErrAlreadyGranted), errors.Is(err, ErrDuplicateTransaction):
			apierrors.AbortWithConflict(c, err.Error(), map[string]interface{}{"listing_id": body.ListingID})
		default:
			h.logger.LogError(ctx, err, "marketplace payment failed")
			apierrors.AbortWithInternal(c, "failed to process payment", nil)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"access_grant":   res.Grant.ID,
		"research_id":    res.ResearchID,
		"transaction_id": res.BuyerTx.ID,
	})
}

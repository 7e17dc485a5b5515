package research

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

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
		logger:  logger,
	}
}

type SubmitBody struct {
	Title         string `json:"title" binding:"required,min=1,max=200"`
	Query         string `json:"query" binding:"required,min=1,max=5000"`
	Depth         string `json:"depth" binding:"required"`
	Type          string `json:"type" binding:"required,oneof=public private"`
	WalletAddress string `json:"wallet_address"`
	IsDemo        bool   `json:"is_demo"`
}

// Submit handles POST /api/research/submit.
func (h *Handler) Submit(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("research-handler")

	var body SubmitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}

	caller, err := auth.Resolve(c, body.WalletAddress, body.IsDemo)
	if err != nil {
		apierrors.AbortWithBadRequest(c, "invalid wallet address", map[string]interface{}{"wallet_address": body.WalletAddress})
		return
	}

	res, err := h.service.Submit(c.Request.Context(), SubmitRequest{
		Title: body.Title,
		Query: body.Query,
		Depth: body.Depth,
		Type:  body.Type,
	}, caller)
	if err != nil {
		var (
			insufficient *InsufficientCreditsError
			demoLimit    *DemoLimitError
		)
		switch {
		case errors.Is(err, ErrInvalidDepth):
			apierrors.AbortWithBadRequest(c, "validation failed", map[string]interface{}{
				"fields": map[string]interface{}{"depth": "unknown"},
			})
		case errors.As(err, &insufficient):
			apierrors.AbortWithPaymentRequired(c, apierrors.InsufficientCredits(insufficient.Required, insufficient.Available))
		case errors.As(err, &demoLimit):
			apierrors.AbortWithForbidden(c, apierrors.DemoDailyLimit(demoLimit.Usage.Used, demoLimit.Usage.Limit, demoLimit.Usage.ResetsAt))
		default:
			log.LogError(c.Request.Context(), err, "failed to submit research")
			apierrors.AbortWithInternal(c, "failed to submit research", nil)
		}
		return
	}

	log.Info("research submitted",
		slog.String("research_id", res.Item.ID),
		slog.String("depth", res.Item.Depth),
		slog.Bool("is_demo", caller.IsDemo()))

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"research":          res.Item,
		"credits_remaining": res.CreditsRemaining,
	})
}

// GetStatus handles GET /api/research/status/:id. Results of private items are
// only returned to the owner or a buyer.
func (h *Handler) GetStatus(c *gin.Context) {
	caller, err := auth.Resolve(c, c.Query("wallet"), false)
	if err != nil {
		apierrors.AbortWithBadRequest(c, "invalid wallet address", nil)
		return
	}

	item, err := h.service.Status(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.abortLookup(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"status":          item.Status,
		"progress":        item.Progress,
		"result_content":  item.ResultContent,
		"result_file_url": item.ResultFileURL,
		"updated_at":      item.UpdatedAt,
	})
}

type StatusBody struct {
	Status        *string `json:"status" binding:"omitempty,oneof=pending processing completed failed"`
	Progress      *int32  `json:"progress" binding:"omitempty,min=0,max=100"`
	ResultContent *string `json:"result_content"`
	ResultFileURL *string `json:"result_file_url"`
	ErrorMessage  *string `json:"error_message"`
}

// UpdateStatus handles the workflow callback POST /api/research/status/:id.
// The route is guarded by auth.RequireCallbackToken.
func (h *Handler) UpdateStatus(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("research-handler")

	var body StatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}

	item, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), StatusUpdate{
		Status:        body.Status,
		Progress:      body.Progress,
		ResultContent: body.ResultContent,
		ResultFileURL: body.ResultFileURL,
		ErrorMessage:  body.ErrorMessage,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			apierrors.AbortWithBadRequest(c, err.Error(), nil)
		case errors.Is(err, ErrBackwardTransition), errors.Is(err, ErrTerminal):
			apierrors.AbortWithConflict(c, err.Error(), map[string]interface{}{"research_id": c.Param("id")})
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidID):
			h.abortLookup(c, err)
		default:
			log.LogError(c.Request.Context(), err, "failed to update research status")
			apierrors.AbortWithInternal(c, "failed to update research status", nil)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"research": item,
	})
}

// Read handles GET /api/research/:id.
func (h *Handler) Read(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("research-handler")

	caller, err := auth.Resolve(c, c.Query("wallet"), false)
	if err != nil {
		apierrors.AbortWithBadRequest(c, "invalid wallet address", nil)
		return
	}

	res, err := h.service.Read(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidID) {
			h.abortLookup(c, err)
			return
		}
		log.LogError(c.Request.Context(), err, "failed to read research")
		apierrors.AbortWithInternal(c, "failed to read research", nil)
		return
	}

	resp := gin.H{
		"success":    true,
		"research":   res.Item,
		"has_access": res.HasAccess,
	}
	if res.Listing != nil {
		resp["listing"] = gin.H{
			"id":        res.Listing.ID,
			"price_sei": res.Listing.PriceSei,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// List handles GET /api/research?wallet=.
func (h *Handler) List(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context()).WithComponent("research-handler")

	caller, err := auth.Resolve(c, c.Query("wallet"), false)
	if err != nil || caller.IsDemo() {
		apierrors.AbortWithBadRequest(c, "a valid wallet is required", nil)
		return
	}

	limit := queryInt(c, "limit", 20, 100)
	offset := queryInt(c, "offset", 0, 1<<30)

	items, err := h.service.ListByWallet(c.Request.Context(), caller.Wallet, limit, offset)
	if err != nil {
		log.LogError(c.Request.Context(), err, "failed to list research")
		apierrors.AbortWithInternal(c, "failed to list research", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"research": items,
	})
}

// DemoUsage handles GET /api/demo/usage for the calling IP.
func (h *Handler) DemoUsage(c *gin.Context) {
	caller, _ := auth.Resolve(c, "", true)

	usage, err := h.service.DemoUsage(c.Request.Context(), caller.IP)
	if err != nil {
		h.logger.LogError(c.Request.Context(), err, "failed to read demo usage")
		apierrors.AbortWithInternal(c, "failed to read demo usage", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"used":      usage.Used,
		"limit":     usage.Limit,
		"remaining": max(usage.Limit-usage.Used, 0),
		"resets_at": usage.ResetsAt,
	})
}

func (h *Handler) abortLookup(c *gin.Context, err error) {
	if errors.Is(err, ErrInvalidID) {
		apierrors.AbortWithBadRequest(c, err.Error(), nil)
		return
	}
	if errors.Is(err, ErrNotFound) {
		apierrors.AbortWithNotFound(c, "research not found", map[string]interface{}{"research_id": c.Param("id")})
		return
	}
	h.logger.LogError(c.Request.Context(), err, "failed to load research")
	apierrors.AbortWithInternal(c, "failed to load research", nil)
}

func queryInt(c *gin.Context, key string, def, max int32) int32 {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return def
	}
	if int32(v) > max {
		return max
	}
	return int32(v)
}

package registry

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/fraudscore/internal/validation"
)

// Handler provides card registry management endpoints.
type Handler struct {
	registry *MemoryRegistry
}

func NewHandler(registry *MemoryRegistry) *Handler {
	return &Handler{registry: registry}
}

// RegisterRoutes sets up card registry routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/cards", h.RegisterCard)
	r.GET("/cards/:id", h.GetCard)
	r.POST("/cards/:id/darkweb", h.FlagDarkWeb)
}

type registerCardRequest struct {
	Card      *int64 `json:"card" binding:"required"`
	Brand     string `json:"brand"`
	Funding   string `json:"funding"`
	HasChip   *bool  `json:"has_chip"`
	OnDarkWeb bool   `json:"on_dark_web"`
	StripeID  string `json:"stripe_payment_method"`
}

// RegisterCard handles POST /api/cards
func (h *Handler) RegisterCard(c *gin.Context) {
	var req registerCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	hasChip := true
	if req.HasChip != nil {
		hasChip = *req.HasChip
	}
	info, err := h.registry.Register(c.Request.Context(), CardInfo{
		Card:      *req.Card,
		Brand:     validation.SanitizeString(req.Brand, 40),
		Funding:   validation.SanitizeString(req.Funding, 40),
		HasChip:   hasChip,
		OnDarkWeb: req.OnDarkWeb,
		StripeID:  req.StripeID,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "enrichment_failed",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, info)
}

// GetCard handles GET /api/cards/:id
func (h *Handler) GetCard(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "card id must be an integer",
		})
		return
	}
	info, ok := h.registry.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "card is not registered",
		})
		return
	}
	c.JSON(http.StatusOK, info)
}

type darkWebRequest struct {
	Flagged *bool `json:"flagged" binding:"required"`
}

// FlagDarkWeb handles POST /api/cards/:id/darkweb
func (h *Handler) FlagDarkWeb(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "card id must be an integer",
		})
		return
	}
	var req darkWebRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}
	if !h.registry.FlagDarkWeb(id, *req.Flagged) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "card is not registered",
		})
		return
	}
	info, _ := h.registry.Get(id)
	c.JSON(http.StatusOK, info)
}

package predictions

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler provides the read-side HTTP endpoints over stored predictions.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up dashboard and statistics routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/predictions/recent", h.Recent)
	r.GET("/statistics", h.Statistics)
	r.GET("/alerts", h.Alerts)
	r.GET("/dashboard/hourly", h.Hourly)
	r.GET("/dashboard/risk-distribution", h.RiskDistribution)
	r.GET("/dashboard/merchants", h.Merchants)
}

func queryInt(c *gin.Context, name string, fallback int) int {
	if raw := c.Query(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

// Recent handles GET /api/predictions/recent
func (h *Handler) Recent(c *gin.Context) {
	recs, err := h.store.Recent(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": recs, "count": len(recs)})
}

// Statistics handles GET /api/statistics
func (h *Handler) Statistics(c *gin.Context) {
	stats, err := h.store.Statistics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Alerts handles GET /api/alerts
func (h *Handler) Alerts(c *gin.Context) {
	recs, err := h.store.Alerts(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": recs, "count": len(recs)})
}

// Hourly handles GET /api/dashboard/hourly
func (h *Handler) Hourly(c *gin.Context) {
	stats, err := h.store.HourlyStats(c.Request.Context(), queryInt(c, "hours", 24))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hours": stats})
}

// RiskDistribution handles GET /api/dashboard/risk-distribution
func (h *Handler) RiskDistribution(c *gin.Context) {
	dist, err := h.store.RiskDistribution(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"distribution": dist})
}

// Merchants handles GET /api/dashboard/merchants
func (h *Handler) Merchants(c *gin.Context) {
	stats, err := h.store.MerchantStats(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"merchants": stats})
}

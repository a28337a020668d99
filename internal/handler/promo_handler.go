package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/pitlane/service-booking/internal/platform/response"
)

// PromoHandler serves the public promotion listing.
type PromoHandler struct {
	service PromoSvc
}

// NewPromoHandler creates a new PromoHandler.
func NewPromoHandler(service PromoSvc) *PromoHandler {
	return &PromoHandler{service: service}
}

// RegisterRoutes registers public promotion routes.
func (h *PromoHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/promotions", h.ListActive)
}

// ListActive handles GET /api/v1/promotions.
func (h *PromoHandler) ListActive(c *gin.Context) {
	promos, err := h.service.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, promos)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pitlane/service-booking/internal/application"
	"github.com/pitlane/service-booking/internal/platform/response"
	"go.uber.org/zap"
)

// PaymentHandler handles the provider-facing payment endpoints.
type PaymentHandler struct {
	service PaymentSvc
	logger  *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service PaymentSvc, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, logger: logger}
}

// RegisterRoutes registers the webhook and sync routes. Both are called by
// the provider or by operators without a user token.
func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	{
		payments.POST("/webhook", h.Webhook)
		payments.GET("/sync", h.Sync)
	}
}

// Webhook handles POST /api/v1/payments/webhook. A 200 acknowledges the
// notification; a 500 asks the provider to deliver it again.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var n application.PaymentNotification
	if err := c.ShouldBindJSON(&n); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.HandleNotification(c.Request.Context(), n)
	if err != nil {
		h.logger.Error("payment notification failed, provider will retry", zap.Error(err))
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Envelope{
			Error: &response.ErrorBody{Kind: "retry", Message: "notification not processed"},
		})
		return
	}

	response.Success(c, result)
}

// Sync handles GET /api/v1/payments/sync?payment_id=|reservation_id=.
func (h *PaymentHandler) Sync(c *gin.Context) {
	result, err := h.service.Sync(c.Request.Context(), c.Query("payment_id"), c.Query("reservation_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

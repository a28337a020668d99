package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/pitlane/service-booking/internal/platform/middleware"
	"github.com/pitlane/service-booking/internal/platform/response"
)

// SweeperHandler lets an external cron trigger the expiry sweep.
type SweeperHandler struct {
	reservations ReservationSvc
	secret       string
}

// NewSweeperHandler creates a new SweeperHandler guarded by secret.
func NewSweeperHandler(reservations ReservationSvc, secret string) *SweeperHandler {
	return &SweeperHandler{reservations: reservations, secret: secret}
}

// RegisterRoutes registers the internal routes.
func (h *SweeperHandler) RegisterRoutes(r *gin.RouterGroup) {
	internal := r.Group("/internal")
	internal.Use(middleware.RequireSecret(h.secret))
	{
		internal.POST("/sweeper/run", h.Run)
	}
}

// Run handles POST /api/v1/internal/sweeper/run.
func (h *SweeperHandler) Run(c *gin.Context) {
	result, err := h.reservations.SweepExpired(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

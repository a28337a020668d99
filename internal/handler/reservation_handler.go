package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pitlane/service-booking/internal/application"
	"github.com/pitlane/service-booking/internal/platform/auth"
	"github.com/pitlane/service-booking/internal/platform/middleware"
	"github.com/pitlane/service-booking/internal/platform/response"
)

// ReservationHandler handles HTTP requests for reservations and availability.
type ReservationHandler struct {
	reservations ReservationSvc
	payments     PaymentSvc
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(reservations ReservationSvc, payments PaymentSvc) *ReservationHandler {
	return &ReservationHandler{reservations: reservations, payments: payments}
}

// RegisterRoutes registers reservation and availability routes.
func (h *ReservationHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	r.GET("/availability", h.Availability)

	reservations := r.Group("/reservations")
	reservations.Use(middleware.AuthMiddleware(jwtManager))
	{
		reservations.POST("", h.Create)
		reservations.GET("", h.List)
		reservations.GET("/:id", h.Get)
		reservations.POST("/:id/cancel", h.Cancel)
		reservations.POST("/:id/checkout", h.Checkout)
		reservations.GET("/:id/payments", h.ListPayments)
	}
}

// Create handles POST /api/v1/reservations.
func (h *ReservationHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.reservations.Create(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// Get handles GET /api/v1/reservations/:id.
func (h *ReservationHandler) Get(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	dto, err := h.reservations.Get(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// List handles GET /api/v1/reservations. Customers only see their own.
func (h *ReservationHandler) List(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	listReservations(c, h.reservations, actor)
}

// Cancel handles POST /api/v1/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	var req application.CancelReservationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	dto, err := h.reservations.Cancel(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// Checkout handles POST /api/v1/reservations/:id/checkout.
func (h *ReservationHandler) Checkout(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	dto, err := h.payments.Checkout(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// ListPayments handles GET /api/v1/reservations/:id/payments.
func (h *ReservationHandler) ListPayments(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}

	dtos, err := h.payments.ListReservationPayments(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dtos)
}

// Availability handles GET /api/v1/availability?experience_id=&time=&quantity=.
func (h *ReservationHandler) Availability(c *gin.Context) {
	experienceID := c.Query("experience_id")
	if experienceID == "" {
		response.BadRequest(c, "experience_id is required")
		return
	}
	t, err := time.Parse(time.RFC3339, c.Query("time"))
	if err != nil {
		response.BadRequest(c, "time must be an RFC3339 timestamp")
		return
	}
	quantity := 1
	if q := c.Query("quantity"); q != "" {
		quantity, err = strconv.Atoi(q)
		if err != nil || quantity < 1 {
			response.BadRequest(c, "quantity must be a positive integer")
			return
		}
	}

	dto, err := h.reservations.Availability(c.Request.Context(), experienceID, t, quantity)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

func (h *ReservationHandler) actorAndID(c *gin.Context) (application.Actor, uuid.UUID, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return application.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid reservation ID")
		return application.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pitlane/service-booking/internal/application"
	"github.com/pitlane/service-booking/internal/domain/reservation"
	"github.com/pitlane/service-booking/internal/platform/auth"
	"github.com/pitlane/service-booking/internal/platform/middleware"
	"github.com/pitlane/service-booking/internal/platform/response"
)

// AdminHandler handles back-office requests.
type AdminHandler struct {
	reservations ReservationSvc
	payments     PaymentSvc
	promos       PromoSvc
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reservations ReservationSvc, payments PaymentSvc, promos PromoSvc) *AdminHandler {
	return &AdminHandler{
		reservations: reservations,
		payments:     payments,
		promos:       promos,
	}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/reservations", h.ListReservations)
		admin.GET("/payments", h.ListPayments)
		admin.GET("/promotions", h.ListPromotions)
		admin.POST("/promotions", h.CreatePromotion)
		admin.PATCH("/promotions/:id/active", h.SetPromotionActive)
	}
}

// ListReservations handles GET /api/v1/admin/reservations.
func (h *AdminHandler) ListReservations(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	listReservations(c, h.reservations, actor)
}

// ListPayments handles GET /api/v1/admin/payments.
func (h *AdminHandler) ListPayments(c *gin.Context) {
	page, limit := pagination(c)

	payments, total, err := h.payments.ListPayments(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, payments, page, limit, total)
}

// ListPromotions handles GET /api/v1/admin/promotions.
func (h *AdminHandler) ListPromotions(c *gin.Context) {
	promos, err := h.promos.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, promos)
}

// CreatePromotion handles POST /api/v1/admin/promotions.
func (h *AdminHandler) CreatePromotion(c *gin.Context) {
	var req application.CreatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.promos.CreatePromotion(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// SetPromotionActive handles PATCH /api/v1/admin/promotions/:id/active.
func (h *AdminHandler) SetPromotionActive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid promotion ID")
		return
	}

	var req application.SetPromotionActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.promos.SetActive(c.Request.Context(), id, *req.Active)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// listReservations serves both the customer and the admin listing; the
// service narrows the filter for non-admin actors.
func listReservations(c *gin.Context, svc ReservationSvc, actor application.Actor) {
	page, limit := pagination(c)
	f := reservation.Filter{
		UserID: c.Query("user_id"),
		Status: reservation.Status(c.Query("status")),
		Page:   page,
		Limit:  limit,
	}
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, q.name+" must be an RFC3339 timestamp")
			return
		}
		*q.dst = &t
	}

	dtos, total, err := svc.List(c.Request.Context(), actor, f)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dtos, page, limit, total)
}

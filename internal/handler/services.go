// Package handler exposes the booking service over HTTP.
package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pitlane/service-booking/internal/application"
	"github.com/pitlane/service-booking/internal/domain/reservation"
	"github.com/pitlane/service-booking/internal/platform/auth"
	"github.com/pitlane/service-booking/internal/platform/middleware"
)

// ReservationSvc is the reservation use-case surface used by the handlers.
type ReservationSvc interface {
	Create(ctx context.Context, userID string, req application.CreateReservationRequest) (*application.ReservationDTO, error)
	Get(ctx context.Context, actor application.Actor, id uuid.UUID) (*application.ReservationDTO, error)
	List(ctx context.Context, actor application.Actor, f reservation.Filter) ([]application.ReservationDTO, int64, error)
	Cancel(ctx context.Context, actor application.Actor, id uuid.UUID, reason string) (*application.ReservationDTO, error)
	Availability(ctx context.Context, experienceID string, t time.Time, quantity int) (*application.AvailabilityDTO, error)
	SweepExpired(ctx context.Context) (*application.SweepResultDTO, error)
}

// PaymentSvc is the payment use-case surface used by the handlers.
type PaymentSvc interface {
	HandleNotification(ctx context.Context, n application.PaymentNotification) (*application.NotificationResult, error)
	Sync(ctx context.Context, paymentID, reservationID string) (*application.SyncResultDTO, error)
	Checkout(ctx context.Context, actor application.Actor, reservationID uuid.UUID) (*application.CheckoutDTO, error)
	ListPayments(ctx context.Context, page, limit int) ([]application.PaymentDTO, int64, error)
	ListReservationPayments(ctx context.Context, actor application.Actor, reservationID uuid.UUID) ([]application.PaymentDTO, error)
}

// PromoSvc is the promotion use-case surface used by the handlers.
type PromoSvc interface {
	CreatePromotion(ctx context.Context, req application.CreatePromotionRequest) (*application.PromotionDTO, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*application.PromotionDTO, error)
	ListActive(ctx context.Context) ([]application.PromotionDTO, error)
	ListAll(ctx context.Context) ([]application.PromotionDTO, error)
}

func actorFrom(c *gin.Context) (application.Actor, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return application.Actor{}, false
	}
	return application.Actor{
		ID:      userID,
		IsAdmin: middleware.GetUserRole(c) == auth.RoleAdmin,
	}, true
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// Package response writes the JSON envelopes returned by every HTTP handler.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pitlane/service-booking/internal/platform/domain"
)

// Envelope is the uniform body of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    any         `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Pagination `json:"meta,omitempty"`
}

// ErrorBody is the error part of an Envelope.
type ErrorBody struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Pagination describes a page of results.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// Success writes a 200 envelope.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 envelope.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Paginated writes a 200 envelope with pagination metadata.
func Paginated(c *gin.Context, data any, page, limit int, total int64) {
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    data,
		Meta:    &Pagination{Page: page, Limit: limit, Total: total},
	})
}

// BadRequest writes a 400 validation envelope.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{
		Error: &ErrorBody{Kind: "validation", Message: message},
	})
}

// Unauthorized writes a 401 envelope.
func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Envelope{
		Error: &ErrorBody{Kind: "unauthorized", Message: message},
	})
}

// Error maps err onto an HTTP status. Errors outside the domain taxonomy are
// recorded on the gin context for the logging middleware and answered with a
// generic message.
func Error(c *gin.Context, err error) {
	status, kind := classify(err)

	de, ok := domain.AsDomainError(err)
	if !ok || status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, Envelope{
			Error: &ErrorBody{Kind: kind, Message: "internal server error"},
		})
		return
	}

	body := &ErrorBody{Kind: kind, Message: de.Message, Details: de.Details}
	if errors.Is(err, domain.ErrGateway) {
		_ = c.Error(err)
		body = &ErrorBody{Kind: kind, Message: "payment provider unavailable, retry later"}
	}
	c.AbortWithStatusJSON(status, Envelope{Error: body})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrCapacityConflict):
		return http.StatusConflict, "capacity_conflict"
	case errors.Is(err, domain.ErrScheduleViolation):
		return http.StatusUnprocessableEntity, "schedule_violation"
	case errors.Is(err, domain.ErrBusinessRule), errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "business_rule"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrGateway):
		return http.StatusBadGateway, "gateway"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

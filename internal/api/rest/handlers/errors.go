package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
	"github.com/ecclesia-cloud/billing-service/pkg/res"
)

// respondError maps a service error to an HTTP status and the shared
// error envelope.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	var couponErr *domain.CouponError
	var conflictErr *domain.StateConflictError

	switch {
	case errors.As(err, &couponErr):
		log.Warn("Coupon rejected: %v", err)
		c.JSON(http.StatusUnprocessableEntity, res.ErrorResponse{
			Error:     "coupon cannot be used",
			ErrorCode: string(couponErr.Reason),
		})
	case errors.As(err, &conflictErr):
		log.Warn("State conflict: %v", err)
		c.JSON(http.StatusConflict, res.ErrorResponse{
			Error:     conflictErr.Error(),
			ErrorCode: "STATE_CONFLICT",
		})
	case errors.Is(err, domain.ErrNotFound):
		log.Warn("Not found: %v", err)
		c.JSON(http.StatusNotFound, res.ErrorResponse{
			Error:     err.Error(),
			ErrorCode: "NOT_FOUND",
		})
	case errors.Is(err, domain.ErrInvalidPlan), errors.Is(err, domain.ErrInvalidInput):
		log.Warn("Invalid request: %v", err)
		c.JSON(http.StatusBadRequest, res.ErrorResponse{
			Error:     err.Error(),
			ErrorCode: "INVALID_REQUEST",
		})
	case errors.Is(err, domain.ErrDuplicate):
		log.Warn("Duplicate request: %v", err)
		c.JSON(http.StatusConflict, res.ErrorResponse{
			Error:     err.Error(),
			ErrorCode: "DUPLICATE",
		})
	case errors.Is(err, domain.ErrUnauthorized):
		log.Warn("Unauthorized: %v", err)
		c.JSON(http.StatusUnauthorized, res.ErrorResponse{
			Error:     "unauthorized",
			ErrorCode: "UNAUTHORIZED",
		})
	case errors.Is(err, domain.ErrCheckoutFailed), errors.Is(err, domain.ErrExternalServiceUnavailable):
		log.Error("Upstream failure: %v", err)
		c.JSON(http.StatusBadGateway, res.ErrorResponse{
			Error:     "payment processor unavailable, try again later",
			ErrorCode: "UPSTREAM_UNAVAILABLE",
		})
	default:
		log.Error("Internal error: %v", err)
		c.JSON(http.StatusInternalServerError, res.ErrorResponse{
			Error:     "internal server error",
			ErrorCode: "INTERNAL",
		})
	}
}

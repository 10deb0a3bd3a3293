package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/internal/service"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
	"github.com/ecclesia-cloud/billing-service/pkg/req"
)

// CouponHandler serves coupon validation and admin management.
type CouponHandler struct {
	coupons service.CouponService
	log     *logger.Logger
}

// NewCouponHandler creates a coupon handler.
func NewCouponHandler(coupons service.CouponService, log *logger.Logger) *CouponHandler {
	return &CouponHandler{coupons: coupons, log: log}
}

// ValidateRequest checks a coupon against a plan price.
type ValidateRequest struct {
	Code string `json:"code" validate:"required,max=64"`
	Plan string `json:"plan" validate:"required"`
}

// Validate quotes the discounted price without consuming a use.
func (h *CouponHandler) Validate(c *gin.Context) {
	body, err := req.HandleBody[ValidateRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	plan, err := domain.GetPlan(domain.PlanID(body.Plan))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	coupon, err := h.coupons.Validate(c.Request.Context(), body.Code, time.Now())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":           true,
		"code":            coupon.Code,
		"discountType":    coupon.DiscountType,
		"originalPrice":   plan.MonthlyPriceReais(),
		"discountedPrice": float64(coupon.Apply(plan.MonthlyPriceCents)) / 100,
	})
}

// CreateCouponRequest provisions a coupon. DiscountValue is a
// percentage for percentage coupons and reais for fixed ones.
type CreateCouponRequest struct {
	Code          string     `json:"code" validate:"required,max=64"`
	DiscountType  string     `json:"discountType" validate:"required,oneof=percentage fixed"`
	DiscountValue float64    `json:"discountValue" validate:"required,gt=0"`
	MaxUses       *int       `json:"maxUses,omitempty" validate:"omitempty,gt=0"`
	ValidFrom     *time.Time `json:"validFrom,omitempty"`
	ValidUntil    *time.Time `json:"validUntil,omitempty"`
}

// Create provisions a coupon.
func (h *CouponHandler) Create(c *gin.Context) {
	body, err := req.HandleBody[CreateCouponRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	now := time.Now()
	validFrom := now
	if body.ValidFrom != nil {
		validFrom = *body.ValidFrom
	}

	discountValue := int64(body.DiscountValue)
	if domain.DiscountType(body.DiscountType) == domain.DiscountFixed {
		// Fixed discounts arrive in reais and are stored in centavos.
		discountValue = int64(body.DiscountValue * 100)
	}

	coupon := &domain.Coupon{
		Code:          body.Code,
		DiscountType:  domain.DiscountType(body.DiscountType),
		DiscountValue: discountValue,
		MaxUses:       body.MaxUses,
		ValidFrom:     validFrom,
		ValidUntil:    body.ValidUntil,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.coupons.Create(c.Request.Context(), coupon); err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Info("Coupon created: %s", coupon.Code)
	c.JSON(http.StatusCreated, coupon)
}

// SetActiveRequest toggles a coupon.
type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// SetActive enables or disables a coupon.
func (h *CouponHandler) SetActive(c *gin.Context) {
	code := c.Param("code")

	body, err := req.HandleBody[SetActiveRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	if err := h.coupons.SetActive(c.Request.Context(), domain.NormalizeCouponCode(code), *body.Active); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/internal/service"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
	"github.com/ecclesia-cloud/billing-service/pkg/req"
)

// CheckoutHandler opens hosted checkout sessions.
type CheckoutHandler struct {
	checkout service.CheckoutService
	log      *logger.Logger
}

// NewCheckoutHandler creates a checkout handler.
func NewCheckoutHandler(checkout service.CheckoutService, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, log: log}
}

// CheckoutRequest starts a checkout for a paid plan. Customer fields
// left empty fall back to the church owner's data on file.
type CheckoutRequest struct {
	ChurchID        string `json:"churchId" validate:"required,uuid"`
	Plan            string `json:"plan" validate:"required"`
	CustomerName    string `json:"customerName,omitempty" validate:"omitempty,max=200"`
	CustomerEmail   string `json:"customerEmail,omitempty" validate:"omitempty,email"`
	CustomerCpfCnpj string `json:"customerCpfCnpj,omitempty" validate:"omitempty,min=11,max=18"`
	CustomerPhone   string `json:"customerPhone,omitempty" validate:"omitempty,max=20"`
	SuccessURL      string `json:"successUrl,omitempty" validate:"omitempty,url"`
	CancelURL       string `json:"cancelUrl,omitempty" validate:"omitempty,url"`
	CouponCode      string `json:"couponCode,omitempty" validate:"omitempty,max=64"`
}

// CreateCheckout opens (or reuses) a checkout session and returns its
// redirect URL.
func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	body, err := req.HandleBody[CheckoutRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	churchID, err := uuid.Parse(body.ChurchID)
	if err != nil {
		respondError(c, h.log, domain.ErrInvalidInput)
		return
	}

	result, err := h.checkout.CreateCheckout(c.Request.Context(), service.CheckoutInput{
		TenantID:        churchID,
		Plan:            domain.PlanID(body.Plan),
		CouponCode:      body.CouponCode,
		CustomerName:    body.CustomerName,
		CustomerEmail:   body.CustomerEmail,
		CustomerCpfCnpj: body.CustomerCpfCnpj,
		CustomerPhone:   body.CustomerPhone,
		SuccessURL:      body.SuccessURL,
		CancelURL:       body.CancelURL,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"checkoutUrl":   result.CheckoutURL,
		"plan":          result.Plan,
		"amount":        float64(result.AmountCents) / 100,
		"couponApplied": result.CouponApplied,
	})
}

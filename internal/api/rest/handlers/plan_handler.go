package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ecclesia-cloud/billing-service/internal/billing"
	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/internal/service"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
	"github.com/ecclesia-cloud/billing-service/pkg/req"
)

// PlanHandler serves the plan catalog and pro-rata quotes.
type PlanHandler struct {
	subscriptions service.SubscriptionService
	log           *logger.Logger
}

// NewPlanHandler creates a plan handler.
func NewPlanHandler(subscriptions service.SubscriptionService, log *logger.Logger) *PlanHandler {
	return &PlanHandler{subscriptions: subscriptions, log: log}
}

type planView struct {
	ID           domain.PlanID `json:"id"`
	Name         string        `json:"name"`
	MonthlyPrice float64       `json:"monthlyPrice"`
	Features     []string      `json:"features"`
}

// GetPlans returns the catalog ordered from cheapest to most expensive.
func (h *PlanHandler) GetPlans(c *gin.Context) {
	plans := domain.AllPlans()
	views := make([]planView, 0, len(plans))
	for _, p := range plans {
		views = append(views, planView{
			ID:           p.ID,
			Name:         p.Name,
			MonthlyPrice: p.MonthlyPriceReais(),
			Features:     p.Features,
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": views})
}

// ProRataRequest asks for a downgrade quote.
type ProRataRequest struct {
	ChurchID string `json:"churchId" validate:"required,uuid"`
	NewPlan  string `json:"newPlan" validate:"required"`
}

// ProRataQuote quotes the credit a downgrade would yield without
// scheduling anything. Amounts are in reais.
func (h *PlanHandler) ProRataQuote(c *gin.Context) {
	body, err := req.HandleBody[ProRataRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	churchID, err := uuid.Parse(body.ChurchID)
	if err != nil {
		respondError(c, h.log, domain.ErrInvalidInput)
		return
	}

	tenant, err := h.subscriptions.Get(c.Request.Context(), churchID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	proRata, err := billing.CalculateProRata(tenant.Plan, domain.PlanID(body.NewPlan), tenant.CycleAnchorAt, time.Now())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if proRata == nil {
		// Not a downgrade: no credit applies.
		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"proRataCredit": 0.0,
			"daysRemaining": 0,
			"unusedValue":   0.0,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"proRataCredit": float64(proRata.CreditCents) / 100,
		"daysRemaining": proRata.DaysRemaining,
		"unusedValue":   float64(proRata.UnusedValueCents) / 100,
	})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/internal/service"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
	"github.com/ecclesia-cloud/billing-service/pkg/req"
)

// SubscriptionHandler exposes the subscription lifecycle.
type SubscriptionHandler struct {
	subscriptions service.SubscriptionService
	log           *logger.Logger
}

// NewSubscriptionHandler creates a subscription handler.
func NewSubscriptionHandler(subscriptions service.SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions, log: log}
}

// subscriptionView is the public shape of a tenant's billing state.
type subscriptionView struct {
	ChurchID      string              `json:"churchId"`
	Slug          string              `json:"slug"`
	Plan          domain.PlanID       `json:"plan"`
	Status        domain.TenantStatus `json:"status"`
	Visible       bool                `json:"visible"`
	CycleAnchorAt time.Time           `json:"cycleAnchorAt"`
	PendingChange *pendingChangeView  `json:"pendingChange,omitempty"`
	OverdueSince  *time.Time          `json:"overdueSince,omitempty"`
	SuspendedAt   *time.Time          `json:"suspendedAt,omitempty"`
}

type pendingChangeView struct {
	Kind        domain.PendingChangeKind `json:"kind"`
	Plan        domain.PlanID            `json:"plan,omitempty"`
	EffectiveAt time.Time                `json:"effectiveAt"`
	Credit      float64                  `json:"credit,omitempty"`
}

func viewOf(t *domain.Tenant) subscriptionView {
	view := subscriptionView{
		ChurchID:      t.ID.String(),
		Slug:          t.Slug,
		Plan:          t.Plan,
		Status:        t.Status,
		Visible:       t.IsVisible(),
		CycleAnchorAt: t.CycleAnchorAt,
		OverdueSince:  t.PaymentOverdueAt,
		SuspendedAt:   t.SuspendedAt,
	}
	if !t.PendingChange.IsZero() {
		view.PendingChange = &pendingChangeView{
			Kind:        t.PendingChange.Kind,
			Plan:        t.PendingChange.Plan,
			EffectiveAt: t.PendingChange.EffectiveAt,
			Credit:      float64(t.PendingChange.CreditCents) / 100,
		}
	}
	return view
}

// GetSubscription returns a church's billing state.
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	churchID, err := uuid.Parse(c.Param("churchId"))
	if err != nil {
		respondError(c, h.log, domain.ErrInvalidInput)
		return
	}

	tenant, err := h.subscriptions.Get(c.Request.Context(), churchID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(tenant))
}

// DowngradeRequest schedules a downgrade.
type DowngradeRequest struct {
	NewPlan string `json:"newPlan" validate:"required"`
}

// ScheduleDowngrade schedules a downgrade for the next cycle boundary.
func (h *SubscriptionHandler) ScheduleDowngrade(c *gin.Context) {
	churchID, err := uuid.Parse(c.Param("churchId"))
	if err != nil {
		respondError(c, h.log, domain.ErrInvalidInput)
		return
	}

	body, err := req.HandleBody[DowngradeRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	result, err := h.subscriptions.ScheduleDowngrade(c.Request.Context(), churchID, domain.PlanID(body.NewPlan))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"newPlan":       result.ToPlan,
		"effectiveAt":   result.EffectiveAt,
		"proRataCredit": float64(result.CreditCents) / 100,
	})
}

// RequestCancellation schedules a cancellation for the cycle boundary.
func (h *SubscriptionHandler) RequestCancellation(c *gin.Context) {
	churchID, err := uuid.Parse(c.Param("churchId"))
	if err != nil {
		respondError(c, h.log, domain.ErrInvalidInput)
		return
	}

	result, err := h.subscriptions.RequestCancellation(c.Request.Context(), churchID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"effectiveAt": result.EffectiveAt,
	})
}

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
	"github.com/ecclesia-cloud/billing-service/pkg/res"
)

// GrantedHandler serves granted free account checks, activation and
// admin provisioning.
type GrantedHandler struct {
	granted service.GrantedAccountService
	log     *logger.Logger
}

// NewGrantedHandler creates a granted accounts handler.
func NewGrantedHandler(granted service.GrantedAccountService, log *logger.Logger) *GrantedHandler {
	return &GrantedHandler{granted: granted, log: log}
}

// Check tells the registration flow whether an email has a grant.
func (h *GrantedHandler) Check(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "email query parameter is required", ErrorCode: "INVALID_REQUEST"})
		return
	}

	check, err := h.granted.Check(c.Request.Context(), email)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"granted":   check.Granted,
		"plan":      check.Plan,
		"expiresAt": check.ExpiresAt,
	})
}

// ActivateRequest consumes a one-time registration token for the
// church being registered.
type ActivateRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Token      string `json:"token" validate:"required"`
	ChurchID   string `json:"churchId" validate:"required,uuid"`
	ChurchName string `json:"churchName" validate:"required,max=200"`
}

// Activate consumes the token and returns the granted plan.
func (h *GrantedHandler) Activate(c *gin.Context) {
	body, err := req.HandleBody[ActivateRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	churchID, err := uuid.Parse(body.ChurchID)
	if err != nil {
		respondError(c, h.log, domain.ErrInvalidInput)
		return
	}

	plan, err := h.granted.Activate(c.Request.Context(), service.GrantedActivation{
		Email:      body.Email,
		Token:      body.Token,
		ChurchID:   churchID,
		ChurchName: body.ChurchName,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"plan":    plan,
	})
}

// GrantRequest provisions a granted free account.
type GrantRequest struct {
	Email     string     `json:"email" validate:"required,email"`
	Plan      string     `json:"plan" validate:"required"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Grant provisions a granted account and returns its one-time token.
func (h *GrantedHandler) Grant(c *gin.Context) {
	body, err := req.HandleBody[GrantRequest](c.Writer, c.Request, h.log)
	if err != nil {
		return
	}

	account, err := h.granted.Grant(c.Request.Context(), body.Email, domain.PlanID(body.Plan), body.ExpiresAt)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"email":     account.Email,
		"plan":      account.Plan,
		"token":     account.Token,
		"expiresAt": account.ExpiresAt,
	})
}

package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/internal/integration/asaas"
	"github.com/ecclesia-cloud/billing-service/internal/service"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
	"github.com/ecclesia-cloud/billing-service/pkg/res"
)

// accessTokenHeader carries the shared secret Asaas includes on every
// webhook delivery.
const accessTokenHeader = "asaas-access-token"

// WebhookHandler receives payment processor callbacks.
type WebhookHandler struct {
	webhooks service.WebhookService
	token    string
	log      *logger.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(webhooks service.WebhookService, token string, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, token: token, log: log}
}

// HandleAsaasWebhook verifies the shared token and hands the payload
// to the webhook service. A rejected token produces no side effects.
// 200 means the event is durably recorded; Asaas retries anything else.
func (h *WebhookHandler) HandleAsaasWebhook(c *gin.Context) {
	provided := c.GetHeader(accessTokenHeader)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.token)) != 1 {
		h.log.Warn("Webhook rejected: bad access token from %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, res.ErrorResponse{Error: "invalid webhook token", ErrorCode: "UNAUTHORIZED"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "failed to read body", ErrorCode: "INVALID_REQUEST"})
		return
	}

	var payload asaas.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.log.Warn("Webhook payload malformed: %v", err)
		c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "malformed payload", ErrorCode: "INVALID_REQUEST"})
		return
	}
	if payload.ID == "" || payload.Event == "" {
		c.JSON(http.StatusBadRequest, res.ErrorResponse{Error: "missing event id or type", ErrorCode: "INVALID_REQUEST"})
		return
	}

	if err := h.webhooks.Process(c.Request.Context(), payload); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			// A reference we cannot map will never become processable;
			// acknowledging stops pointless retries.
			h.log.Warn("Webhook event unmappable: %v", err)
			c.JSON(http.StatusOK, gin.H{"received": true, "processed": false})
			return
		}
		h.log.Error("Webhook processing failed: %v", err)
		c.JSON(http.StatusInternalServerError, res.ErrorResponse{Error: "processing failed", ErrorCode: "INTERNAL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEventType is the kind of callback received from the payment
// processor.
type WebhookEventType string

const (
	WebhookPaymentConfirmed WebhookEventType = "PAYMENT_CONFIRMED"
	WebhookPaymentReceived  WebhookEventType = "PAYMENT_RECEIVED"
	WebhookPaymentOverdue   WebhookEventType = "PAYMENT_OVERDUE"
	WebhookPaymentRefunded  WebhookEventType = "PAYMENT_REFUNDED"
	WebhookPaymentDeleted   WebhookEventType = "PAYMENT_DELETED"
)

// WebhookEventStatus is the processing state of a stored webhook event.
type WebhookEventStatus string

const (
	WebhookEventStatusPending   WebhookEventStatus = "pending"
	WebhookEventStatusProcessed WebhookEventStatus = "processed"
	WebhookEventStatusFailed    WebhookEventStatus = "failed"
)

// WebhookEvent is the persisted record of a processor callback. The
// external id is unique, which is what makes at-least-once delivery
// safe to replay.
type WebhookEvent struct {
	ID           uuid.UUID          `json:"id"`
	ExternalID   string             `json:"external_id"`
	Type         WebhookEventType   `json:"type"`
	Status       WebhookEventStatus `json:"status"`
	TenantID     uuid.UUID          `json:"tenant_id"`
	Plan         PlanID             `json:"plan,omitempty"`
	Payload      []byte             `json:"payload"`
	ErrorMessage string             `json:"error_message,omitempty"`
	ProcessedAt  *time.Time         `json:"processed_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// BillingEventType labels events published to Kafka for downstream
// consumers (provisioning, analytics, CRM).
type BillingEventType string

const (
	BillingSubscriptionActivated BillingEventType = "subscription.activated"
	BillingSubscriptionSuspended BillingEventType = "subscription.suspended"
	BillingSubscriptionCancelled BillingEventType = "subscription.cancelled"
	BillingPlanChanged           BillingEventType = "subscription.plan_changed"
	BillingCheckoutCreated       BillingEventType = "checkout.created"
)

// BillingEvent is the Kafka payload for tenant billing lifecycle
// changes.
type BillingEvent struct {
	Type      BillingEventType `json:"type"`
	TenantID  uuid.UUID        `json:"tenant_id"`
	Slug      string           `json:"slug"`
	Plan      PlanID           `json:"plan"`
	Status    TenantStatus     `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
}

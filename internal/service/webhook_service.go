package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/internal/integration/asaas"
	"github.com/ecclesia-cloud/billing-service/internal/metrics"
	"github.com/ecclesia-cloud/billing-service/internal/repository"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
)

// WebhookService turns payment processor callbacks into subscription
// state changes.
type WebhookService interface {
	// Process handles one callback. Replays of an already seen event
	// id are absorbed without side effects.
	Process(ctx context.Context, payload asaas.WebhookPayload) error
}

type webhookService struct {
	events        repository.WebhookEventRepository
	subscriptions SubscriptionService
	metrics       metrics.BillingMetrics
	log           *logger.Logger
	now           func() time.Time
}

// NewWebhookService creates the webhook service.
func NewWebhookService(
	events repository.WebhookEventRepository,
	subscriptions SubscriptionService,
	m metrics.BillingMetrics,
	log *logger.Logger,
) WebhookService {
	return &webhookService{
		events:        events,
		subscriptions: subscriptions,
		metrics:       m,
		now:           time.Now,
		log:           log,
	}
}

// Process persists the event first, then applies it. The unique event
// id insert is what makes at-least-once webhook delivery safe.
func (s *webhookService) Process(ctx context.Context, payload asaas.WebhookPayload) error {
	now := s.now()

	eventType := domain.WebhookEventType(payload.Event)
	switch eventType {
	case domain.WebhookPaymentConfirmed, domain.WebhookPaymentReceived,
		domain.WebhookPaymentOverdue, domain.WebhookPaymentRefunded,
		domain.WebhookPaymentDeleted:
	default:
		// Asaas sends more event kinds than billing cares about.
		s.metrics.IncWebhookEvent(payload.Event, "ignored")
		s.log.Debugw("Ignoring webhook event type", "event", payload.Event, "externalID", payload.ID)
		return nil
	}

	tenantID, plan, err := ParseCheckoutReference(payload.Payment.ExternalReference)
	if err != nil {
		s.metrics.IncWebhookEvent(payload.Event, "unmapped")
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	event := &domain.WebhookEvent{
		ID:         uuid.New(),
		ExternalID: payload.ID,
		Type:       eventType,
		Status:     domain.WebhookEventStatusPending,
		TenantID:   tenantID,
		Plan:       plan,
		Payload:    raw,
		CreatedAt:  now,
	}
	if err := s.events.Insert(ctx, event); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return s.retryStored(ctx, payload, now)
		}
		return err
	}

	return s.apply(ctx, event, now)
}

// retryStored handles a redelivered event id. Events that already
// processed are absorbed; events whose earlier dispatch failed are
// dispatched again, so redelivery can repair a transient failure.
func (s *webhookService) retryStored(ctx context.Context, payload asaas.WebhookPayload, now time.Time) error {
	stored, err := s.events.GetByExternalID(ctx, payload.ID)
	if err != nil {
		return fmt.Errorf("failed to load stored webhook event %q: %w", payload.ID, err)
	}
	if stored.Status != domain.WebhookEventStatusFailed {
		s.metrics.IncWebhookEvent(payload.Event, "duplicate")
		s.log.Infow("Duplicate webhook event, skipping", "externalID", payload.ID, "event", payload.Event)
		return nil
	}
	s.log.Infow("Retrying failed webhook event", "externalID", payload.ID, "event", payload.Event)
	return s.apply(ctx, stored, now)
}

// apply dispatches the event and records the outcome on its row.
func (s *webhookService) apply(ctx context.Context, event *domain.WebhookEvent, now time.Time) error {
	if err := s.dispatch(ctx, event, now); err != nil {
		s.metrics.IncWebhookEvent(string(event.Type), "failed")
		if markErr := s.events.MarkFailed(ctx, event.ExternalID, err.Error()); markErr != nil {
			s.log.Errorw("Failed to mark webhook event failed", "error", markErr, "externalID", event.ExternalID)
		}
		return err
	}

	if err := s.events.MarkProcessed(ctx, event.ExternalID, s.now()); err != nil {
		s.log.Errorw("Failed to mark webhook event processed", "error", err, "externalID", event.ExternalID)
	}
	s.metrics.IncWebhookEvent(string(event.Type), "processed")
	return nil
}

// dispatch routes the stored event to its lifecycle handler.
func (s *webhookService) dispatch(ctx context.Context, event *domain.WebhookEvent, now time.Time) error {
	switch event.Type {
	case domain.WebhookPaymentConfirmed, domain.WebhookPaymentReceived:
		return s.subscriptions.HandlePaymentConfirmed(ctx, event.TenantID, event.Plan, now)
	case domain.WebhookPaymentOverdue:
		return s.subscriptions.HandlePaymentOverdue(ctx, event.TenantID, now)
	case domain.WebhookPaymentRefunded, domain.WebhookPaymentDeleted:
		// Recorded for the audit trail; refunds are handled manually
		// by support today.
		s.log.Warnw("Payment refunded or deleted", "tenantID", event.TenantID, "event", event.Type, "externalID", event.ExternalID)
		return nil
	default:
		return fmt.Errorf("unhandled webhook event type %q", event.Type)
	}
}

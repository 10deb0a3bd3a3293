// Package kafka publishes billing lifecycle events for downstream
// consumers (site provisioning, analytics, CRM).
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
)

// Topics per billing event type.
const (
	TopicSubscriptionActivated = "billing.subscription.activated"
	TopicSubscriptionSuspended = "billing.subscription.suspended"
	TopicSubscriptionCancelled = "billing.subscription.cancelled"
	TopicPlanChanged           = "billing.subscription.plan_changed"
	TopicCheckoutCreated       = "billing.checkout.created"
)

// TopicFor maps a billing event type to its Kafka topic.
func TopicFor(eventType domain.BillingEventType) string {
	switch eventType {
	case domain.BillingSubscriptionActivated:
		return TopicSubscriptionActivated
	case domain.BillingSubscriptionSuspended:
		return TopicSubscriptionSuspended
	case domain.BillingSubscriptionCancelled:
		return TopicSubscriptionCancelled
	case domain.BillingPlanChanged:
		return TopicPlanChanged
	case domain.BillingCheckoutCreated:
		return TopicCheckoutCreated
	default:
		return ""
	}
}

// Producer publishes billing events.
type Producer interface {
	PublishBillingEvent(ctx context.Context, event domain.BillingEvent) error
	Close() error
}

// saramaProducer implements Producer with a sarama SyncProducer.
type saramaProducer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewProducer creates a Kafka producer for billing events.
func NewProducer(brokers []string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: brokers are not configured")
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to create producer: %w", err)
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)
	return &saramaProducer{producer: producer, log: log}, nil
}

// PublishBillingEvent sends the event to its topic. The tenant id is
// the message key, so all events for one tenant stay in one partition
// and keep their order.
func (p *saramaProducer) PublishBillingEvent(ctx context.Context, event domain.BillingEvent) error {
	topic := TopicFor(event.Type)
	if topic == "" {
		return fmt.Errorf("kafka: unknown billing event type %q", event.Type)
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.log.Errorw("Failed to marshal billing event", "error", err, "type", event.Type, "tenantID", event.TenantID)
		return fmt.Errorf("kafka: failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.TenantID.String()),
		Value: sarama.ByteEncoder(value),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.log.Errorw("Failed to publish billing event", "error", err, "topic", topic, "tenantID", event.TenantID)
		return fmt.Errorf("kafka: failed to publish event: %w", err)
	}

	p.log.Debugw("Billing event published", "topic", topic, "partition", partition, "offset", offset, "tenantID", event.TenantID)
	return nil
}

// Close shuts the producer down.
func (p *saramaProducer) Close() error {
	return p.producer.Close()
}

// NoOpProducer discards events. Used when Kafka is not configured and
// in tests.
type NoOpProducer struct{}

// PublishBillingEvent discards the event.
func (NoOpProducer) PublishBillingEvent(ctx context.Context, event domain.BillingEvent) error {
	return nil
}

// Close is a no-op.
func (NoOpProducer) Close() error { return nil }

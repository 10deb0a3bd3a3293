package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BillingMetrics is the instrumentation surface of the billing flows.
type BillingMetrics interface {
	IncCheckoutCreated(plan string)
	ObserveCheckoutAmount(plan string, amountReais float64)
	IncWebhookEvent(eventType, result string)
	IncTransition(from, to string)
	IncEmail(emailType, result string)
	IncCouponRedemption(result string)
}

type billingMetrics struct {
	checkoutsCreated  *prometheus.CounterVec
	checkoutAmount    *prometheus.HistogramVec
	webhookEvents     *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	emails            *prometheus.CounterVec
	couponRedemptions *prometheus.CounterVec
}

// NewBillingMetrics registers the billing metrics on the registry.
func NewBillingMetrics(registry *prometheus.Registry) BillingMetrics {
	return &billingMetrics{
		checkoutsCreated: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_checkouts_created_total",
				Help: "The total number of checkout sessions created",
			},
			[]string{"plan"},
		),
		checkoutAmount: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_checkout_amount_reais",
				Help:    "Checkout amounts distribution in reais",
				Buckets: prometheus.ExponentialBuckets(10, 2, 6), // 10 .. 320
			},
			[]string{"plan"},
		),
		webhookEvents: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_webhook_events_total",
				Help: "The total number of processor webhook events by result",
			},
			[]string{"type", "result"},
		),
		transitions: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_status_transitions_total",
				Help: "The total number of tenant status transitions",
			},
			[]string{"from", "to"},
		),
		emails: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_emails_total",
				Help: "The total number of transactional emails by result",
			},
			[]string{"type", "result"},
		),
		couponRedemptions: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_coupon_redemptions_total",
				Help: "The total number of coupon redemption attempts by result",
			},
			[]string{"result"},
		),
	}
}

func (m *billingMetrics) IncCheckoutCreated(plan string) {
	m.checkoutsCreated.WithLabelValues(plan).Inc()
}

func (m *billingMetrics) ObserveCheckoutAmount(plan string, amountReais float64) {
	m.checkoutAmount.WithLabelValues(plan).Observe(amountReais)
}

func (m *billingMetrics) IncWebhookEvent(eventType, result string) {
	m.webhookEvents.WithLabelValues(eventType, result).Inc()
}

func (m *billingMetrics) IncTransition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *billingMetrics) IncEmail(emailType, result string) {
	m.emails.WithLabelValues(emailType, result).Inc()
}

func (m *billingMetrics) IncCouponRedemption(result string) {
	m.couponRedemptions.WithLabelValues(result).Inc()
}

// NoOpMetrics satisfies BillingMetrics without a registry. Used in tests.
type NoOpMetrics struct{}

func (NoOpMetrics) IncCheckoutCreated(plan string)                         {}
func (NoOpMetrics) ObserveCheckoutAmount(plan string, amountReais float64) {}
func (NoOpMetrics) IncWebhookEvent(eventType, result string)               {}
func (NoOpMetrics) IncTransition(from, to string)                          {}
func (NoOpMetrics) IncEmail(emailType, result string)                      {}
func (NoOpMetrics) IncCouponRedemption(result string)                      {}

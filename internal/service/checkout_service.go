// Package service contains the billing business logic: checkout
// orchestration, the subscription lifecycle, webhook processing,
// coupon redemption and granted free accounts.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/internal/integration/asaas"
	"github.com/ecclesia-cloud/billing-service/internal/kafka"
	"github.com/ecclesia-cloud/billing-service/internal/metrics"
	"github.com/ecclesia-cloud/billing-service/internal/repository"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
)

// PaymentGateway is the slice of the payment processor the billing
// flows need. *asaas.Client satisfies it.
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, req asaas.CustomerRequest) (*asaas.CustomerResponse, error)
	CreatePaymentLink(ctx context.Context, req asaas.PaymentLinkRequest) (*asaas.PaymentLinkResponse, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// CheckoutLocker hands out short-lived locks that deduplicate
// concurrent checkout requests for the same tenant+plan pair.
// *repository.RedisCacheRepository satisfies it.
type CheckoutLocker interface {
	AcquireCheckoutLock(ctx context.Context, tenantID uuid.UUID, plan domain.PlanID) (bool, error)
	ReleaseCheckoutLock(ctx context.Context, tenantID uuid.UUID, plan domain.PlanID)
}

// CheckoutResult is what the API returns for a created (or reused)
// checkout session.
type CheckoutResult struct {
	CheckoutURL   string
	Plan          domain.PlanID
	AmountCents   int64
	CouponApplied string
	Reused        bool
}

// CheckoutInput carries what the client sends to open a checkout.
// Customer fields left empty fall back to the tenant's owner data;
// empty URLs fall back to the configured base URL.
type CheckoutInput struct {
	TenantID   uuid.UUID
	Plan       domain.PlanID
	CouponCode string

	CustomerName    string
	CustomerEmail   string
	CustomerCpfCnpj string
	CustomerPhone   string

	SuccessURL string
	CancelURL  string
}

// CheckoutService opens hosted checkout sessions on the payment
// processor.
type CheckoutService interface {
	CreateCheckout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
}

type checkoutService struct {
	tenants  repository.TenantRepository
	coupons  CouponService
	gateway  PaymentGateway
	locker   CheckoutLocker
	producer kafka.Producer
	metrics  metrics.BillingMetrics
	baseURL  string
	log      *logger.Logger
	now      func() time.Time
}

// NewCheckoutService creates the checkout service. locker may be nil
// when Redis is not configured; deduplication then falls back to link
// reuse alone.
func NewCheckoutService(
	tenants repository.TenantRepository,
	coupons CouponService,
	gateway PaymentGateway,
	locker CheckoutLocker,
	producer kafka.Producer,
	m metrics.BillingMetrics,
	baseURL string,
	log *logger.Logger,
) CheckoutService {
	return &checkoutService{
		tenants:  tenants,
		coupons:  coupons,
		gateway:  gateway,
		locker:   locker,
		producer: producer,
		metrics:  m,
		baseURL:  baseURL,
		log:      log,
		now:      time.Now,
	}
}

// CreateCheckout opens a hosted recurring checkout for a paid plan.
//
// The flow only persists billing state after the processor has
// acknowledged the session, so a processor failure leaves the tenant
// untouched. A coupon is resolved and priced here but redeemed only
// when the payment is later confirmed.
func (s *checkoutService) CreateCheckout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	now := s.now()
	tenantID, plan, couponCode := input.TenantID, input.Plan, input.CouponCode

	planInfo, err := domain.GetPlan(plan)
	if err != nil {
		return nil, err
	}
	if planInfo.MonthlyPriceCents == 0 {
		return nil, fmt.Errorf("%w: plan %q does not require checkout", domain.ErrInvalidInput, plan)
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("tenant", tenantID.String())
		}
		return nil, err
	}

	// An unexpired session for the same plan is handed back instead of
	// opening a second one.
	if tenant.Status == domain.TenantStatusPendingPayment && tenant.CheckoutPlan == plan && tenant.CheckoutLink != "" {
		s.log.Infow("Reusing pending checkout link", "tenantID", tenantID, "plan", plan)
		return &CheckoutResult{
			CheckoutURL:   tenant.CheckoutLink,
			Plan:          plan,
			AmountCents:   s.priceFor(ctx, planInfo, tenant.CheckoutCoupon, now),
			CouponApplied: tenant.CheckoutCoupon,
			Reused:        true,
		}, nil
	}

	if s.locker != nil {
		acquired, err := s.locker.AcquireCheckoutLock(ctx, tenantID, plan)
		if err != nil {
			// Locking is best-effort; a cache outage must not block
			// checkout.
			s.log.Warnw("Checkout lock unavailable, proceeding without it", "error", err, "tenantID", tenantID)
		} else if !acquired {
			return nil, fmt.Errorf("%w: checkout already in progress for tenant %s", domain.ErrDuplicate, tenantID)
		} else {
			defer s.locker.ReleaseCheckoutLock(ctx, tenantID, plan)
		}
	}

	amountCents := planInfo.MonthlyPriceCents
	appliedCoupon := ""
	if couponCode != "" {
		coupon, err := s.coupons.Validate(ctx, couponCode, now)
		if err != nil {
			var couponErr *domain.CouponError
			if !errors.As(err, &couponErr) {
				return nil, err
			}
			// An unusable coupon does not block checkout, it is just
			// not applied.
			s.log.Warnw("Coupon rejected at checkout", "code", couponCode, "reason", couponErr.Reason, "tenantID", tenantID)
		} else {
			amountCents = coupon.Apply(amountCents)
			appliedCoupon = coupon.Code
		}
	}

	if tenant.AsaasCustomerID == "" {
		customerName := input.CustomerName
		if customerName == "" {
			customerName = tenant.OwnerName
		}
		customerEmail := input.CustomerEmail
		if customerEmail == "" {
			customerEmail = tenant.OwnerEmail
		}
		customer, err := s.gateway.CreateCustomer(ctx, asaas.CustomerRequest{
			Name:              customerName,
			Email:             customerEmail,
			CpfCnpj:           input.CustomerCpfCnpj,
			MobilePhone:       input.CustomerPhone,
			ExternalReference: tenant.ID.String(),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCheckoutFailed, err)
		}
		tenant.AsaasCustomerID = customer.ID
	}

	successURL := input.SuccessURL
	if successURL == "" {
		successURL = s.baseURL + "/checkout/success"
	}
	link, err := s.gateway.CreatePaymentLink(ctx, asaas.PaymentLinkRequest{
		Name:              fmt.Sprintf("Plano %s - %s", planInfo.Name, tenant.Name),
		Description:       fmt.Sprintf("Assinatura mensal do plano %s", planInfo.Name),
		BillingType:       "UNDEFINED",
		ChargeType:        "RECURRENT",
		SubscriptionCycle: "MONTHLY",
		Value:             float64(amountCents) / 100,
		ExternalReference: checkoutReference(tenant.ID, plan),
		SuccessURL:        successURL,
		CancelURL:         input.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCheckoutFailed, err)
	}

	tenant.Status = domain.TenantStatusPendingPayment
	tenant.CheckoutPlan = plan
	tenant.CheckoutLink = link.URL
	tenant.CheckoutCoupon = appliedCoupon
	tenant.AsaasCheckoutID = link.ID
	tenant.UpdatedAt = now
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, fmt.Errorf("checkout created but tenant update failed: %w", err)
	}

	s.metrics.IncCheckoutCreated(string(plan))
	s.metrics.ObserveCheckoutAmount(string(plan), float64(amountCents)/100)

	if err := s.producer.PublishBillingEvent(ctx, domain.BillingEvent{
		Type:      domain.BillingCheckoutCreated,
		TenantID:  tenant.ID,
		Slug:      tenant.Slug,
		Plan:      plan,
		Status:    tenant.Status,
		Timestamp: now,
	}); err != nil {
		s.log.Errorw("Failed to publish checkout event", "error", err, "tenantID", tenant.ID)
	}

	s.log.Infow("Checkout created", "tenantID", tenant.ID, "plan", plan, "amountCents", amountCents, "coupon", appliedCoupon)
	return &CheckoutResult{
		CheckoutURL:   link.URL,
		Plan:          plan,
		AmountCents:   amountCents,
		CouponApplied: appliedCoupon,
	}, nil
}

// priceFor reprices a reused checkout so the response matches what the
// processor will charge.
func (s *checkoutService) priceFor(ctx context.Context, plan domain.Plan, couponCode string, now time.Time) int64 {
	if couponCode == "" {
		return plan.MonthlyPriceCents
	}
	coupon, err := s.coupons.Validate(ctx, couponCode, now)
	if err != nil {
		return plan.MonthlyPriceCents
	}
	return coupon.Apply(plan.MonthlyPriceCents)
}

// checkoutReference encodes the tenant and target plan into the
// external reference carried back by payment webhooks.
func checkoutReference(tenantID uuid.UUID, plan domain.PlanID) string {
	return tenantID.String() + ":" + string(plan)
}

// ParseCheckoutReference reverses checkoutReference.
func ParseCheckoutReference(ref string) (uuid.UUID, domain.PlanID, error) {
	for i := len(ref) - 1; i >= 0; i-- {
		if ref[i] == ':' {
			id, err := uuid.Parse(ref[:i])
			if err != nil {
				return uuid.Nil, "", fmt.Errorf("invalid checkout reference %q: %w", ref, err)
			}
			return id, domain.PlanID(ref[i+1:]), nil
		}
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid checkout reference %q: %w", ref, err)
	}
	return id, "", nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ecclesia-cloud/billing-service/internal/billing"
	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/internal/email"
	"github.com/ecclesia-cloud/billing-service/internal/kafka"
	"github.com/ecclesia-cloud/billing-service/internal/metrics"
	"github.com/ecclesia-cloud/billing-service/internal/repository"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
)

// DowngradeResult describes a scheduled downgrade.
type DowngradeResult struct {
	ToPlan      domain.PlanID
	EffectiveAt time.Time
	CreditCents int64
}

// SubscriptionService drives the tenant billing lifecycle.
type SubscriptionService interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)

	// ScheduleDowngrade records a downgrade that takes effect at the
	// next cycle boundary, together with the pro-rata credit for the
	// unused remainder of the current cycle.
	ScheduleDowngrade(ctx context.Context, tenantID uuid.UUID, toPlan domain.PlanID) (*DowngradeResult, error)

	// RequestCancellation schedules the cancellation for the cycle
	// boundary, cancels the processor subscription and sends the
	// acknowledgement email right away.
	RequestCancellation(ctx context.Context, tenantID uuid.UUID) (*DowngradeResult, error)

	// HandlePaymentConfirmed settles a confirmed payment: redeems the
	// checkout coupon, activates the tenant and notifies the owner.
	HandlePaymentConfirmed(ctx context.Context, tenantID uuid.UUID, plan domain.PlanID, now time.Time) error

	// HandlePaymentOverdue marks the grace window open and notifies
	// the owner.
	HandlePaymentOverdue(ctx context.Context, tenantID uuid.UUID, now time.Time) error

	// ProcessDueChanges applies every pending change whose effective
	// date has passed. Returns how many tenants were changed.
	ProcessDueChanges(ctx context.Context, now time.Time) (int, error)

	// SuspendOverdue suspends every tenant whose grace window has
	// elapsed. Returns how many tenants were suspended.
	SuspendOverdue(ctx context.Context, now time.Time) (int, error)
}

type subscriptionService struct {
	tenants   repository.TenantRepository
	coupons   CouponService
	gateway   PaymentGateway
	notifier  email.Notifier
	producer  kafka.Producer
	metrics   metrics.BillingMetrics
	graceDays int
	log       *logger.Logger
	now       func() time.Time
}

// NewSubscriptionService creates the subscription service. graceDays
// below 1 falls back to the default grace window.
func NewSubscriptionService(
	tenants repository.TenantRepository,
	coupons CouponService,
	gateway PaymentGateway,
	notifier email.Notifier,
	producer kafka.Producer,
	m metrics.BillingMetrics,
	graceDays int,
	log *logger.Logger,
) SubscriptionService {
	if graceDays < 1 {
		graceDays = billing.DefaultGraceDays
	}
	return &subscriptionService{
		tenants:   tenants,
		coupons:   coupons,
		gateway:   gateway,
		notifier:  notifier,
		producer:  producer,
		metrics:   m,
		graceDays: graceDays,
		log:       log,
		now:       time.Now,
	}
}

// Get returns a tenant by id.
func (s *subscriptionService) Get(ctx context.Context, tenantID uuid.UUID) (*domain.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("tenant", tenantID.String())
		}
		return nil, err
	}
	return tenant, nil
}

// GetBySlug returns a tenant by its public slug.
func (s *subscriptionService) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	tenant, err := s.tenants.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("tenant", slug)
		}
		return nil, err
	}
	return tenant, nil
}

// ScheduleDowngrade computes the pro-rata credit and records the
// downgrade on the tenant. The current plan stays in force until the
// cycle boundary.
func (s *subscriptionService) ScheduleDowngrade(ctx context.Context, tenantID uuid.UUID, toPlan domain.PlanID) (*DowngradeResult, error) {
	now := s.now()

	tenant, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	proRata, err := billing.CalculateProRata(tenant.Plan, toPlan, tenant.CycleAnchorAt, now)
	if err != nil {
		return nil, err
	}
	if proRata == nil {
		return nil, fmt.Errorf("%w: %s -> %s is not a downgrade", domain.ErrInvalidInput, tenant.Plan, toPlan)
	}

	effectiveAt := billing.NextCycleDate(tenant.CycleAnchorAt, now)
	changed, err := billing.ScheduleDowngrade(tenant, toPlan, proRata.CreditCents, effectiveAt)
	if err != nil {
		return nil, err
	}
	if changed {
		tenant.UpdatedAt = now
		if err := s.tenants.Update(ctx, tenant); err != nil {
			return nil, err
		}
		s.log.Infow("Downgrade scheduled", "tenantID", tenantID, "from", tenant.Plan, "to", toPlan,
			"effectiveAt", effectiveAt, "creditCents", proRata.CreditCents)
	}

	return &DowngradeResult{
		ToPlan:      toPlan,
		EffectiveAt: effectiveAt,
		CreditCents: proRata.CreditCents,
	}, nil
}

// RequestCancellation schedules the drop to the free plan for the
// cycle boundary. The acknowledgement email goes out immediately, not
// when the cancellation lands.
func (s *subscriptionService) RequestCancellation(ctx context.Context, tenantID uuid.UUID) (*DowngradeResult, error) {
	now := s.now()

	tenant, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	effectiveAt := billing.NextCycleDate(tenant.CycleAnchorAt, now)
	changed, err := billing.ScheduleCancellation(tenant, effectiveAt)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Idempotent repeat of an already scheduled cancellation.
		return &DowngradeResult{ToPlan: domain.PlanFree, EffectiveAt: tenant.PendingChange.EffectiveAt}, nil
	}

	tenant.UpdatedAt = now
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, err
	}

	if tenant.AsaasSubscriptionID != "" {
		if err := s.gateway.CancelSubscription(ctx, tenant.AsaasSubscriptionID); err != nil {
			// The local schedule is authoritative; the processor side
			// is retried by the reconcile job if it stays out of sync.
			s.log.Errorw("Failed to cancel processor subscription", "error", err, "tenantID", tenantID)
		}
	}

	s.sendEmail(ctx, tenant, email.TypeSubscriptionCancelled, email.TemplateData{
		ChurchName: tenant.Name,
		OwnerName:  tenant.OwnerName,
		PlanName:   planName(tenant.Plan),
	})

	s.log.Infow("Cancellation scheduled", "tenantID", tenantID, "effectiveAt", effectiveAt)
	return &DowngradeResult{ToPlan: domain.PlanFree, EffectiveAt: effectiveAt}, nil
}

// HandlePaymentConfirmed is the webhook-driven activation path.
func (s *subscriptionService) HandlePaymentConfirmed(ctx context.Context, tenantID uuid.UUID, plan domain.PlanID, now time.Time) error {
	tenant, err := s.Get(ctx, tenantID)
	if err != nil {
		return err
	}

	// The coupon priced into the checkout is consumed only now that
	// the money actually arrived.
	if tenant.CheckoutCoupon != "" {
		if err := s.coupons.Redeem(ctx, tenant.CheckoutCoupon, now); err != nil {
			var couponErr *domain.CouponError
			if errors.As(err, &couponErr) {
				s.log.Warnw("Checkout coupon no longer redeemable at confirmation", "code", tenant.CheckoutCoupon, "reason", couponErr.Reason, "tenantID", tenantID)
			} else {
				return err
			}
		}
	}

	fromStatus := tenant.Status
	changed, err := billing.ConfirmPayment(tenant, plan, now)
	if err != nil {
		return err
	}
	if !changed {
		s.log.Infow("Payment confirmation already settled", "tenantID", tenantID, "plan", tenant.Plan)
		return nil
	}

	tenant.UpdatedAt = now
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return err
	}
	s.metrics.IncTransition(string(fromStatus), string(tenant.Status))

	s.sendEmail(ctx, tenant, email.TypePaymentConfirmed, email.TemplateData{
		ChurchName: tenant.Name,
		OwnerName:  tenant.OwnerName,
		PlanName:   planName(tenant.Plan),
	})
	s.publish(ctx, domain.BillingSubscriptionActivated, tenant, now)

	s.log.Infow("Payment confirmed", "tenantID", tenantID, "plan", tenant.Plan, "from", fromStatus)
	return nil
}

// HandlePaymentOverdue opens the grace window. Repeated overdue
// events for the same open window are absorbed.
func (s *subscriptionService) HandlePaymentOverdue(ctx context.Context, tenantID uuid.UUID, now time.Time) error {
	tenant, err := s.Get(ctx, tenantID)
	if err != nil {
		return err
	}

	if !billing.MarkOverdue(tenant, now) {
		return nil
	}

	tenant.UpdatedAt = now
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return err
	}

	s.sendEmail(ctx, tenant, email.TypePaymentOverdue, email.TemplateData{
		ChurchName:  tenant.Name,
		OwnerName:   tenant.OwnerName,
		PlanName:    planName(tenant.Plan),
		DaysOverdue: s.graceDays,
	})

	s.log.Infow("Payment overdue", "tenantID", tenantID, "graceDays", s.graceDays)
	return nil
}

// ProcessDueChanges applies pending downgrades and cancellations that
// reached their effective date.
func (s *subscriptionService) ProcessDueChanges(ctx context.Context, now time.Time) (int, error) {
	due, err := s.tenants.ListDueChanges(ctx, now)
	if err != nil {
		return 0, err
	}

	applied := 0
	for i := range due {
		tenant := &due[i]
		fromPlan := tenant.Plan

		changed, err := billing.ApplyDueChange(tenant, now)
		if err != nil {
			s.log.Errorw("Failed to apply pending change", "error", err, "tenantID", tenant.ID)
			continue
		}
		if !changed {
			continue
		}

		tenant.UpdatedAt = now
		if err := s.tenants.Update(ctx, tenant); err != nil {
			s.log.Errorw("Failed to persist pending change", "error", err, "tenantID", tenant.ID)
			continue
		}
		applied++

		eventType := domain.BillingPlanChanged
		if tenant.Plan == domain.PlanFree {
			eventType = domain.BillingSubscriptionCancelled
		}
		s.publish(ctx, eventType, tenant, now)
		s.log.Infow("Pending change applied", "tenantID", tenant.ID, "from", fromPlan, "to", tenant.Plan)
	}
	return applied, nil
}

// SuspendOverdue suspends every tenant whose grace window has fully
// elapsed. The suspension email is sent exactly once, gated by the
// state transition itself.
func (s *subscriptionService) SuspendOverdue(ctx context.Context, now time.Time) (int, error) {
	grace := time.Duration(s.graceDays) * 24 * time.Hour
	cutoff := now.Add(-grace)

	overdue, err := s.tenants.ListOverdueSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	suspended := 0
	for i := range overdue {
		tenant := &overdue[i]

		changed, err := billing.Suspend(tenant, now, grace)
		if err != nil {
			var conflict *domain.StateConflictError
			if !errors.As(err, &conflict) {
				s.log.Errorw("Failed to suspend tenant", "error", err, "tenantID", tenant.ID)
			}
			continue
		}
		if !changed {
			continue
		}

		tenant.UpdatedAt = now
		if err := s.tenants.Update(ctx, tenant); err != nil {
			s.log.Errorw("Failed to persist suspension", "error", err, "tenantID", tenant.ID)
			continue
		}
		suspended++
		s.metrics.IncTransition(string(domain.TenantStatusActive), string(domain.TenantStatusSuspended))

		s.sendEmail(ctx, tenant, email.TypeChurchSuspended, email.TemplateData{
			ChurchName:  tenant.Name,
			OwnerName:   tenant.OwnerName,
			PlanName:    planName(tenant.Plan),
			DaysOverdue: s.graceDays,
		})
		s.publish(ctx, domain.BillingSubscriptionSuspended, tenant, now)
		s.log.Warnw("Tenant suspended for non-payment", "tenantID", tenant.ID, "overdueSince", tenant.PaymentOverdueAt)
	}
	return suspended, nil
}

// sendEmail delivers a notification and records the outcome. Email
// failures never fail the billing operation that triggered them.
func (s *subscriptionService) sendEmail(ctx context.Context, tenant *domain.Tenant, emailType email.Type, data email.TemplateData) {
	if _, err := s.notifier.Send(ctx, emailType, tenant.OwnerEmail, data); err != nil {
		s.metrics.IncEmail(string(emailType), "error")
		s.log.Errorw("Failed to send email", "error", err, "type", emailType, "tenantID", tenant.ID)
		return
	}
	s.metrics.IncEmail(string(emailType), "ok")
}

func (s *subscriptionService) publish(ctx context.Context, eventType domain.BillingEventType, tenant *domain.Tenant, now time.Time) {
	if err := s.producer.PublishBillingEvent(ctx, domain.BillingEvent{
		Type:      eventType,
		TenantID:  tenant.ID,
		Slug:      tenant.Slug,
		Plan:      tenant.Plan,
		Status:    tenant.Status,
		Timestamp: now,
	}); err != nil {
		s.log.Errorw("Failed to publish billing event", "error", err, "type", eventType, "tenantID", tenant.ID)
	}
}

// planName resolves the display name, falling back to the raw id for
// data that predates the catalog.
func planName(id domain.PlanID) string {
	plan, err := domain.GetPlan(id)
	if err != nil {
		return string(id)
	}
	return plan.Name
}

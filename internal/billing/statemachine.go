package billing

import (
	"time"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
)

// DefaultGraceDays is how long a tenant may stay overdue before it is
// suspended.
const DefaultGraceDays = 7

// Transition is a directed edge between tenant statuses.
type Transition struct {
	From domain.TenantStatus
	To   domain.TenantStatus
}

// validTransitions is the complete set of allowed status changes.
// There is no terminal status: a suspended tenant always returns to
// active on a confirmed payment.
var validTransitions = map[Transition]bool{
	{domain.TenantStatusPendingPayment, domain.TenantStatusActive}: true, // first payment confirmed
	{domain.TenantStatusActive, domain.TenantStatusSuspended}:      true, // overdue past grace window
	{domain.TenantStatusSuspended, domain.TenantStatusActive}:      true, // payment recovered
}

// CanTransition checks if a transition between statuses is allowed.
func CanTransition(from, to domain.TenantStatus) bool {
	return validTransitions[Transition{from, to}]
}

// ConfirmPayment applies a confirmed-payment event to the tenant.
//
// Webhook delivery is at-least-once, so this must be idempotent: a
// tenant that is already active on the confirmed plan with no overdue
// marker is left untouched and changed is false. plan may be empty, in
// which case the plan recorded at checkout time is used.
func ConfirmPayment(t *domain.Tenant, plan domain.PlanID, now time.Time) (bool, error) {
	if plan == "" {
		plan = t.CheckoutPlan
	}
	if plan == "" {
		plan = t.Plan
	}
	if _, err := domain.GetPlan(plan); err != nil {
		return false, err
	}

	alreadySettled := t.Status == domain.TenantStatusActive &&
		t.Plan == plan &&
		t.PaymentOverdueAt == nil
	if alreadySettled {
		return false, nil
	}

	if t.Status != domain.TenantStatusActive && !CanTransition(t.Status, domain.TenantStatusActive) {
		return false, domain.NewStateConflictError(t.ID.String(), t.Status, domain.TenantStatusActive)
	}

	if t.Status != domain.TenantStatusActive || t.Plan != plan {
		// New cycle starts at activation or plan switch.
		t.CycleAnchorAt = now
	}

	t.Status = domain.TenantStatusActive
	t.Plan = plan
	t.PaymentOverdueAt = nil
	t.SuspendedAt = nil
	t.AsaasCheckoutID = ""
	t.CheckoutPlan = ""
	t.CheckoutLink = ""
	t.CheckoutCoupon = ""
	t.UpdatedAt = now
	return true, nil
}

// MarkOverdue records the first overdue notice for the tenant. The
// marker is set once; later overdue events for the same spell are
// no-ops so the grace window is measured from the first notice.
func MarkOverdue(t *domain.Tenant, now time.Time) bool {
	if t.PaymentOverdueAt != nil {
		return false
	}
	overdueAt := now
	t.PaymentOverdueAt = &overdueAt
	t.UpdatedAt = now
	return true
}

// Suspend moves an overdue tenant to suspended once the grace window
// has elapsed without a confirming payment. Tenants that are not
// active, not overdue, or still within grace are left untouched.
func Suspend(t *domain.Tenant, now time.Time, grace time.Duration) (bool, error) {
	if t.Status != domain.TenantStatusActive {
		return false, nil
	}
	if t.PaymentOverdueAt == nil {
		return false, nil
	}
	if now.Sub(*t.PaymentOverdueAt) < grace {
		return false, nil
	}
	if !CanTransition(t.Status, domain.TenantStatusSuspended) {
		return false, domain.NewStateConflictError(t.ID.String(), t.Status, domain.TenantStatusSuspended)
	}

	suspendedAt := now
	t.Status = domain.TenantStatusSuspended
	t.SuspendedAt = &suspendedAt
	t.UpdatedAt = now
	return true, nil
}

// ScheduleDowngrade records a downgrade that takes effect at the given
// cycle boundary, carrying the computed pro-rata credit. The current
// plan is not touched until the change falls due.
func ScheduleDowngrade(t *domain.Tenant, to domain.PlanID, creditCents int64, effectiveAt time.Time) (bool, error) {
	if t.Status != domain.TenantStatusActive {
		return false, &domain.StateConflictError{
			TenantID: t.ID.String(),
			From:     t.Status,
			Message:  "plan can only be changed while active",
		}
	}
	cmp, err := domain.ComparePlans(t.Plan, to)
	if err != nil {
		return false, err
	}
	if cmp != domain.PlanDowngrade {
		return false, domain.ErrInvalidInput
	}

	if t.PendingChange.Kind == domain.PendingChangeDowngrade && t.PendingChange.Plan == to {
		return false, nil
	}

	t.PendingChange = domain.PendingChange{
		Kind:        domain.PendingChangeDowngrade,
		Plan:        to,
		EffectiveAt: effectiveAt,
		CreditCents: creditCents,
	}
	t.UpdatedAt = time.Now()
	return true, nil
}

// ScheduleCancellation flags the tenant for downgrade to the free plan
// at period end. Access remains full until the change falls due.
func ScheduleCancellation(t *domain.Tenant, effectiveAt time.Time) (bool, error) {
	if t.Plan == domain.PlanFree {
		return false, &domain.StateConflictError{
			TenantID: t.ID.String(),
			From:     t.Status,
			Message:  "tenant is already on the free plan",
		}
	}
	if t.Status != domain.TenantStatusActive {
		return false, &domain.StateConflictError{
			TenantID: t.ID.String(),
			From:     t.Status,
			Message:  "cancellation can only be requested while active",
		}
	}
	if t.PendingChange.Kind == domain.PendingChangeCancellation {
		return false, nil
	}

	t.PendingChange = domain.PendingChange{
		Kind:        domain.PendingChangeCancellation,
		EffectiveAt: effectiveAt,
	}
	t.UpdatedAt = time.Now()
	return true, nil
}

// ApplyDueChange consumes the tenant's pending change if its effective
// date has passed, mutating the plan and starting a fresh cycle.
func ApplyDueChange(t *domain.Tenant, now time.Time) (bool, error) {
	if !t.PendingChange.Due(now) {
		return false, nil
	}

	switch t.PendingChange.Kind {
	case domain.PendingChangeDowngrade:
		if _, err := domain.GetPlan(t.PendingChange.Plan); err != nil {
			return false, err
		}
		t.Plan = t.PendingChange.Plan
	case domain.PendingChangeCancellation:
		t.Plan = domain.PlanFree
	default:
		return false, nil
	}

	t.PendingChange = domain.NoPendingChange()
	t.CycleAnchorAt = now
	t.UpdatedAt = now
	return true, nil
}

package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
)

func newPendingTenant(plan domain.PlanID) *domain.Tenant {
	t := domain.NewTenant("igreja-central", "Igreja Central", "Maria Souza", "maria@igrejacentral.com.br")
	t.CheckoutPlan = plan
	t.CheckoutLink = "https://pay.example/abc"
	return t
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from domain.TenantStatus
		to   domain.TenantStatus
		want bool
	}{
		{domain.TenantStatusPendingPayment, domain.TenantStatusActive, true},
		{domain.TenantStatusActive, domain.TenantStatusSuspended, true},
		{domain.TenantStatusSuspended, domain.TenantStatusActive, true},
		{domain.TenantStatusPendingPayment, domain.TenantStatusSuspended, false},
		{domain.TenantStatusSuspended, domain.TenantStatusPendingPayment, false},
		{domain.TenantStatusActive, domain.TenantStatusPendingPayment, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

// First payment for a pending tenant activates it on the plan chosen
// at checkout and anchors the billing cycle at confirmation time.
func TestConfirmPaymentActivates(t *testing.T) {
	tenant := newPendingTenant(domain.PlanOuro)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	changed, err := ConfirmPayment(tenant, "", now)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, domain.TenantStatusActive, tenant.Status)
	assert.Equal(t, domain.PlanOuro, tenant.Plan)
	assert.Equal(t, now, tenant.CycleAnchorAt)
	assert.True(t, tenant.IsVisible())
	assert.Empty(t, tenant.CheckoutPlan)
	assert.Empty(t, tenant.CheckoutLink)
	assert.Empty(t, tenant.CheckoutCoupon)
}

// Webhooks are delivered at least once: a replayed confirmation must
// not move the cycle anchor or report a change.
func TestConfirmPaymentIdempotent(t *testing.T) {
	tenant := newPendingTenant(domain.PlanPrata)
	first := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	changed, err := ConfirmPayment(tenant, domain.PlanPrata, first)
	require.NoError(t, err)
	require.True(t, changed)

	replay := first.Add(2 * time.Hour)
	changed, err = ConfirmPayment(tenant, domain.PlanPrata, replay)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, first, tenant.CycleAnchorAt, "replay must not move the cycle anchor")
}

// A confirmed payment while overdue clears the marker and keeps the
// tenant active.
func TestConfirmPaymentClearsOverdue(t *testing.T) {
	tenant := newPendingTenant(domain.PlanPrata)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := ConfirmPayment(tenant, domain.PlanPrata, start)
	require.NoError(t, err)

	require.True(t, MarkOverdue(tenant, start.AddDate(0, 1, 0)))
	require.NotNil(t, tenant.PaymentOverdueAt)

	changed, err := ConfirmPayment(tenant, domain.PlanPrata, start.AddDate(0, 1, 2))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Nil(t, tenant.PaymentOverdueAt)
	assert.Equal(t, domain.TenantStatusActive, tenant.Status)
}

// Payment recovery on a suspended tenant reactivates it.
func TestConfirmPaymentReactivatesSuspended(t *testing.T) {
	tenant := newPendingTenant(domain.PlanOuro)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := ConfirmPayment(tenant, domain.PlanOuro, start)
	require.NoError(t, err)

	overdueAt := start.AddDate(0, 1, 0)
	require.True(t, MarkOverdue(tenant, overdueAt))
	grace := time.Duration(DefaultGraceDays) * 24 * time.Hour

	changed, err := Suspend(tenant, overdueAt.Add(grace), grace)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, domain.TenantStatusSuspended, tenant.Status)
	assert.False(t, tenant.IsVisible())

	recoveredAt := overdueAt.Add(grace).Add(24 * time.Hour)
	changed, err = ConfirmPayment(tenant, domain.PlanOuro, recoveredAt)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.TenantStatusActive, tenant.Status)
	assert.Nil(t, tenant.SuspendedAt)
	assert.Equal(t, recoveredAt, tenant.CycleAnchorAt)
}

func TestConfirmPaymentUnknownPlan(t *testing.T) {
	tenant := newPendingTenant("")
	tenant.Plan = ""

	_, err := ConfirmPayment(tenant, "", time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidPlan)
}

func TestMarkOverdueSetOnce(t *testing.T) {
	tenant := newPendingTenant(domain.PlanPrata)
	_, err := ConfirmPayment(tenant, domain.PlanPrata, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	first := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, MarkOverdue(tenant, first))

	// A second overdue notice must not reset the grace clock.
	assert.False(t, MarkOverdue(tenant, first.AddDate(0, 0, 3)))
	assert.Equal(t, first, *tenant.PaymentOverdueAt)
}

func TestSuspendRespectsGraceWindow(t *testing.T) {
	tenant := newPendingTenant(domain.PlanPrata)
	_, err := ConfirmPayment(tenant, domain.PlanPrata, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	overdueAt := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	require.True(t, MarkOverdue(tenant, overdueAt))
	grace := time.Duration(DefaultGraceDays) * 24 * time.Hour

	// Day 6 of 7: still within grace.
	changed, err := Suspend(tenant, overdueAt.Add(grace-24*time.Hour), grace)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.TenantStatusActive, tenant.Status)

	// Grace elapsed.
	changed, err = Suspend(tenant, overdueAt.Add(grace), grace)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.TenantStatusSuspended, tenant.Status)

	// Already suspended: nothing more to do.
	changed, err = Suspend(tenant, overdueAt.Add(grace+24*time.Hour), grace)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestScheduleDowngrade(t *testing.T) {
	tenant := newPendingTenant(domain.PlanOuro)
	_, err := ConfirmPayment(tenant, domain.PlanOuro, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	effectiveAt := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	changed, err := ScheduleDowngrade(tenant, domain.PlanPrata, 5950, effectiveAt)
	require.NoError(t, err)
	assert.True(t, changed)

	// Plan stays in force until the boundary.
	assert.Equal(t, domain.PlanOuro, tenant.Plan)
	assert.Equal(t, domain.PendingChangeDowngrade, tenant.PendingChange.Kind)
	assert.Equal(t, domain.PlanPrata, tenant.PendingChange.Plan)
	assert.Equal(t, int64(5950), tenant.PendingChange.CreditCents)

	// Repeating the same request is a no-op.
	changed, err = ScheduleDowngrade(tenant, domain.PlanPrata, 5950, effectiveAt)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestScheduleDowngradeRejectsUpgrade(t *testing.T) {
	tenant := newPendingTenant(domain.PlanPrata)
	_, err := ConfirmPayment(tenant, domain.PlanPrata, time.Now())
	require.NoError(t, err)

	_, err = ScheduleDowngrade(tenant, domain.PlanDiamante, 0, time.Now().AddDate(0, 1, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestScheduleDowngradeRequiresActive(t *testing.T) {
	tenant := newPendingTenant(domain.PlanOuro)

	_, err := ScheduleDowngrade(tenant, domain.PlanPrata, 0, time.Now().AddDate(0, 1, 0))
	var conflict *domain.StateConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestScheduleCancellation(t *testing.T) {
	tenant := newPendingTenant(domain.PlanOuro)
	_, err := ConfirmPayment(tenant, domain.PlanOuro, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	effectiveAt := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	changed, err := ScheduleCancellation(tenant, effectiveAt)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.PendingChangeCancellation, tenant.PendingChange.Kind)
	assert.Equal(t, domain.PlanOuro, tenant.Plan, "access stays until period end")

	changed, err = ScheduleCancellation(tenant, effectiveAt.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, changed, "repeat request is idempotent")
}

func TestScheduleCancellationOnFreePlan(t *testing.T) {
	tenant := domain.NewTenant("igreja-pequena", "Igreja Pequena", "Joao Lima", "joao@example.com")
	tenant.Plan = domain.PlanFree
	tenant.Status = domain.TenantStatusActive

	_, err := ScheduleCancellation(tenant, time.Now().AddDate(0, 1, 0))
	var conflict *domain.StateConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestApplyDueChange(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	boundary := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	tenant := newPendingTenant(domain.PlanOuro)
	_, err := ConfirmPayment(tenant, domain.PlanOuro, start)
	require.NoError(t, err)
	_, err = ScheduleDowngrade(tenant, domain.PlanPrata, 0, boundary)
	require.NoError(t, err)

	// Not yet due.
	changed, err := ApplyDueChange(tenant, boundary.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.PlanOuro, tenant.Plan)

	// At the boundary the downgrade lands and a fresh cycle starts.
	changed, err = ApplyDueChange(tenant, boundary)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.PlanPrata, tenant.Plan)
	assert.Equal(t, boundary, tenant.CycleAnchorAt)
	assert.True(t, tenant.PendingChange.IsZero())
}

func TestApplyDueChangeCancellation(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	boundary := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	tenant := newPendingTenant(domain.PlanPrata)
	_, err := ConfirmPayment(tenant, domain.PlanPrata, start)
	require.NoError(t, err)
	_, err = ScheduleCancellation(tenant, boundary)
	require.NoError(t, err)

	changed, err := ApplyDueChange(tenant, boundary)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.PlanFree, tenant.Plan)
	assert.Equal(t, domain.TenantStatusActive, tenant.Status, "cancelled tenants keep the free tier")
}

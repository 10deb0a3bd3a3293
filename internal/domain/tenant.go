package domain

import (
	"time"

	"github.com/google/uuid"
)

// TenantStatus is the billing status of a tenant (church).
type TenantStatus string

const (
	TenantStatusPendingPayment TenantStatus = "pending_payment"
	TenantStatusActive         TenantStatus = "active"
	TenantStatusSuspended      TenantStatus = "suspended"
)

// PendingChangeKind discriminates the PendingChange union.
type PendingChangeKind string

const (
	PendingChangeNone         PendingChangeKind = "none"
	PendingChangeDowngrade    PendingChangeKind = "scheduled_downgrade"
	PendingChangeCancellation PendingChangeKind = "scheduled_cancellation"
)

// PendingChange is a scheduled plan mutation that takes effect at the
// end of the current billing cycle. Exactly one variant is populated,
// selected by Kind.
type PendingChange struct {
	Kind        PendingChangeKind `json:"kind"`
	Plan        PlanID            `json:"plan,omitempty"`
	EffectiveAt time.Time         `json:"effective_at,omitempty"`
	CreditCents int64             `json:"credit_cents,omitempty"`
}

// NoPendingChange is the empty variant.
func NoPendingChange() PendingChange {
	return PendingChange{Kind: PendingChangeNone}
}

// IsZero reports whether no change is scheduled.
func (c PendingChange) IsZero() bool {
	return c.Kind == "" || c.Kind == PendingChangeNone
}

// Due reports whether the scheduled change should be applied now.
func (c PendingChange) Due(now time.Time) bool {
	if c.IsZero() {
		return false
	}
	return !now.Before(c.EffectiveAt)
}

// Tenant is one church's account within the platform.
type Tenant struct {
	ID         uuid.UUID    `json:"id"`
	Slug       string       `json:"slug"`
	Name       string       `json:"name"`
	OwnerName  string       `json:"owner_name"`
	OwnerEmail string       `json:"owner_email"`
	Plan       PlanID       `json:"plan"`
	Status     TenantStatus `json:"status"`

	// CycleAnchorAt is the start of the current billing cycle; cycles
	// renew monthly from this date.
	CycleAnchorAt    time.Time  `json:"cycle_anchor_at"`
	PaymentOverdueAt *time.Time `json:"payment_overdue_at,omitempty"`
	SuspendedAt      *time.Time `json:"suspended_at,omitempty"`

	// External billing references (Asaas).
	AsaasCustomerID     string `json:"asaas_customer_id,omitempty"`
	AsaasSubscriptionID string `json:"asaas_subscription_id,omitempty"`
	// AsaasCheckoutID and CheckoutPlan track a live checkout session so
	// a duplicate submission reuses it instead of opening a second one.
	AsaasCheckoutID string `json:"asaas_checkout_id,omitempty"`
	CheckoutPlan    PlanID `json:"checkout_plan,omitempty"`
	CheckoutLink    string `json:"checkout_link,omitempty"`
	// CheckoutCoupon is the code applied at checkout time; it is only
	// redeemed once the payment is confirmed.
	CheckoutCoupon string `json:"checkout_coupon,omitempty"`

	PendingChange PendingChange `json:"pending_change"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsVisible reports whether the tenant's public site and admin console
// are reachable. Only active tenants are visible.
func (t *Tenant) IsVisible() bool {
	return t.Status == TenantStatusActive
}

// NewTenant creates a tenant on the free plan awaiting its first payment.
func NewTenant(slug, name, ownerName, ownerEmail string) *Tenant {
	now := time.Now()
	return &Tenant{
		ID:            uuid.New(),
		Slug:          slug,
		Name:          name,
		OwnerName:     ownerName,
		OwnerEmail:    ownerEmail,
		Plan:          PlanFree,
		Status:        TenantStatusPendingPayment,
		CycleAnchorAt: now,
		PendingChange: NoPendingChange(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

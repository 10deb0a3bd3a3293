package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/internal/kafka"
	"github.com/ecclesia-cloud/billing-service/internal/metrics"
	"github.com/ecclesia-cloud/billing-service/internal/repository"
)

type checkoutFixture struct {
	tenants *repository.InMemoryTenantRepository
	coupons *repository.InMemoryCouponRepository
	gateway *fakeGateway
	locker  *fakeLocker
	svc     CheckoutService
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	tenants := repository.NewInMemoryTenantRepository()
	coupons := repository.NewInMemoryCouponRepository()
	gateway := &fakeGateway{}
	locker := newFakeLocker()
	couponSvc := NewCouponService(coupons, metrics.NoOpMetrics{}, testLogger())

	svc := NewCheckoutService(
		tenants, couponSvc, gateway, locker, kafka.NoOpProducer{}, metrics.NoOpMetrics{},
		"https://app.example.com", testLogger())
	return &checkoutFixture{
		tenants: tenants,
		coupons: coupons,
		gateway: gateway,
		locker:  locker,
		svc:     svc,
	}
}

func (f *checkoutFixture) checkout(tenantID uuid.UUID, plan domain.PlanID, coupon string) (*CheckoutResult, error) {
	return f.svc.CreateCheckout(context.Background(), CheckoutInput{
		TenantID:   tenantID,
		Plan:       plan,
		CouponCode: coupon,
	})
}

func (f *checkoutFixture) seedTenant(t *testing.T) *domain.Tenant {
	t.Helper()
	tenant := domain.NewTenant("igreja-central", "Igreja Central", "Maria Souza", "maria@igrejacentral.com.br")
	require.NoError(t, f.tenants.Create(context.Background(), tenant))
	return tenant
}

func TestCreateCheckout(t *testing.T) {
	f := newCheckoutFixture(t)
	tenant := f.seedTenant(t)

	result, err := f.checkout(tenant.ID, domain.PlanOuro, "")
	require.NoError(t, err)

	assert.Equal(t, domain.PlanOuro, result.Plan)
	assert.Equal(t, int64(11900), result.AmountCents)
	assert.NotEmpty(t, result.CheckoutURL)
	assert.False(t, result.Reused)

	stored, err := f.tenants.GetByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TenantStatusPendingPayment, stored.Status)
	assert.Equal(t, domain.PlanOuro, stored.CheckoutPlan)
	assert.Equal(t, result.CheckoutURL, stored.CheckoutLink)
	assert.NotEmpty(t, stored.AsaasCustomerID)

	// The webhook mapping reference carries tenant and plan.
	require.Len(t, f.gateway.paymentLinks, 1)
	assert.Equal(t, tenant.ID.String()+":ouro", f.gateway.paymentLinks[0].ExternalReference)
	assert.Equal(t, 119.0, f.gateway.paymentLinks[0].Value)
}

// Customer identity and redirect URLs from the request reach the
// processor; absent fields fall back to the owner on file and the
// configured base URL.
func TestCreateCheckoutCustomerData(t *testing.T) {
	f := newCheckoutFixture(t)
	tenant := f.seedTenant(t)

	_, err := f.svc.CreateCheckout(context.Background(), CheckoutInput{
		TenantID:        tenant.ID,
		Plan:            domain.PlanOuro,
		CustomerName:    "Tesouraria Central",
		CustomerEmail:   "financeiro@igrejacentral.com.br",
		CustomerCpfCnpj: "12345678000190",
		CustomerPhone:   "11999990000",
		SuccessURL:      "https://igrejacentral.com.br/obrigado",
		CancelURL:       "https://igrejacentral.com.br/planos",
	})
	require.NoError(t, err)

	require.Len(t, f.gateway.customers, 1)
	customer := f.gateway.customers[0]
	assert.Equal(t, "Tesouraria Central", customer.Name)
	assert.Equal(t, "financeiro@igrejacentral.com.br", customer.Email)
	assert.Equal(t, "12345678000190", customer.CpfCnpj)
	assert.Equal(t, "11999990000", customer.MobilePhone)

	require.Len(t, f.gateway.paymentLinks, 1)
	assert.Equal(t, "https://igrejacentral.com.br/obrigado", f.gateway.paymentLinks[0].SuccessURL)
	assert.Equal(t, "https://igrejacentral.com.br/planos", f.gateway.paymentLinks[0].CancelURL)
}

// With no customer data in the request the owner on file is used.
func TestCreateCheckoutCustomerFallback(t *testing.T) {
	f := newCheckoutFixture(t)
	tenant := f.seedTenant(t)

	_, err := f.checkout(tenant.ID, domain.PlanPrata, "")
	require.NoError(t, err)

	require.Len(t, f.gateway.customers, 1)
	assert.Equal(t, "Maria Souza", f.gateway.customers[0].Name)
	assert.Equal(t, "maria@igrejacentral.com.br", f.gateway.customers[0].Email)

	require.Len(t, f.gateway.paymentLinks, 1)
	assert.Equal(t, "https://app.example.com/checkout/success", f.gateway.paymentLinks[0].SuccessURL)
}

func TestCreateCheckoutFreePlanRejected(t *testing.T) {
	f := newCheckoutFixture(t)
	tenant := f.seedTenant(t)

	_, err := f.checkout(tenant.ID, domain.PlanFree, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.checkout(tenant.ID, "platina", "")
	assert.ErrorIs(t, err, domain.ErrInvalidPlan)
}

func TestCreateCheckoutAppliesCoupon(t *testing.T) {
	f := newCheckoutFixture(t)
	tenant := f.seedTenant(t)

	require.NoError(t, f.coupons.Create(context.Background(), &domain.Coupon{
		Code: "BEMVINDO10", DiscountType: domain.DiscountPercentage, DiscountValue: 10,
		ValidFrom: time.Now().AddDate(0, -1, 0), IsActive: true,
	}))

	result, err := f.checkout(tenant.ID, domain.PlanOuro, "bemvindo10")
	require.NoError(t, err)

	assert.Equal(t, int64(10710), result.AmountCents)
	assert.Equal(t, "BEMVINDO10", result.CouponApplied)

	// Priced, not yet redeemed: redemption happens on payment
	// confirmation.
	coupon, err := f.coupons.GetByCode(context.Background(), "BEMVINDO10")
	require.NoError(t, err)
	assert.Zero(t, coupon.CurrentUses)

	stored, err := f.tenants.GetByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "BEMVINDO10", stored.CheckoutCoupon)
}

// An unusable coupon does not block checkout; it just is not applied.
func TestCreateCheckoutIgnoresInvalidCoupon(t *testing.T) {
	f := newCheckoutFixture(t)
	tenant := f.seedTenant(t)

	result, err := f.checkout(tenant.ID, domain.PlanPrata, "NAOEXISTE")
	require.NoError(t, err)

	assert.Equal(t, int64(6900), result.AmountCents)
	assert.Empty(t, result.CouponApplied)
}

// Repeating the request for the same plan hands back the stored link
// instead of opening a second processor session.
func TestCreateCheckoutReusesPendingLink(t *testing.T) {
	f := newCheckoutFixture(t)
	tenant := f.seedTenant(t)

	first, err := f.checkout(tenant.ID, domain.PlanOuro, "")
	require.NoError(t, err)

	second, err := f.checkout(tenant.ID, domain.PlanOuro, "")
	require.NoError(t, err)

	assert.True(t, second.Reused)
	assert.Equal(t, first.CheckoutURL, second.CheckoutURL)
	assert.Len(t, f.gateway.paymentLinks, 1, "no second processor session")
}

// While a checkout for the pair is in flight, a second request is
// turned away instead of racing.
func TestCreateCheckoutLockHeld(t *testing.T) {
	f := newCheckoutFixture(t)
	tenant := f.seedTenant(t)

	acquired, err := f.locker.AcquireCheckoutLock(context.Background(), tenant.ID, domain.PlanOuro)
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = f.checkout(tenant.ID, domain.PlanOuro, "")
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

// A processor failure leaves the tenant untouched.
func TestCreateCheckoutGatewayFailure(t *testing.T) {
	f := newCheckoutFixture(t)
	tenant := f.seedTenant(t)
	f.gateway.failCreatePaymentLink = true

	_, err := f.checkout(tenant.ID, domain.PlanOuro, "")
	assert.ErrorIs(t, err, domain.ErrCheckoutFailed)

	stored, err := f.tenants.GetByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TenantStatusPendingPayment, stored.Status)
	assert.Empty(t, stored.CheckoutLink)
	assert.Empty(t, stored.CheckoutPlan)
}

func TestParseCheckoutReference(t *testing.T) {
	tenant := domain.NewTenant("igreja", "Igreja", "Owner", "owner@example.com")

	id, plan, err := ParseCheckoutReference(tenant.ID.String() + ":diamante")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, id)
	assert.Equal(t, domain.PlanDiamante, plan)

	// Reference without a plan suffix still maps the tenant.
	id, plan, err = ParseCheckoutReference(tenant.ID.String())
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, id)
	assert.Empty(t, plan)

	_, _, err = ParseCheckoutReference("not-a-uuid:ouro")
	assert.Error(t, err)
}

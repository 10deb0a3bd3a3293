package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/internal/integration/asaas"
)

// fakeGateway is an in-memory PaymentGateway for tests.
type fakeGateway struct {
	mu                    sync.Mutex
	customers             []asaas.CustomerRequest
	paymentLinks          []asaas.PaymentLinkRequest
	cancelled             []string
	failCreatePaymentLink bool
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, req asaas.CustomerRequest) (*asaas.CustomerResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customers = append(g.customers, req)
	return &asaas.CustomerResponse{
		ID:    fmt.Sprintf("cus_%06d", len(g.customers)),
		Name:  req.Name,
		Email: req.Email,
	}, nil
}

func (g *fakeGateway) CreatePaymentLink(ctx context.Context, req asaas.PaymentLinkRequest) (*asaas.PaymentLinkResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreatePaymentLink {
		return nil, domain.NewExternalServiceError("asaas", "API_ERROR", "forced failure", 500, nil)
	}
	g.paymentLinks = append(g.paymentLinks, req)
	id := fmt.Sprintf("link_%06d", len(g.paymentLinks))
	return &asaas.PaymentLinkResponse{
		ID:     id,
		URL:    "https://pay.asaas.test/" + id,
		Active: true,
	}, nil
}

func (g *fakeGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, subscriptionID)
	return nil
}

// fakeLocker is a process-local CheckoutLocker.
type fakeLocker struct {
	mu    sync.Mutex
	locks map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locks: make(map[string]bool)}
}

func (l *fakeLocker) key(tenantID uuid.UUID, plan domain.PlanID) string {
	return tenantID.String() + ":" + string(plan)
}

func (l *fakeLocker) AcquireCheckoutLock(ctx context.Context, tenantID uuid.UUID, plan domain.PlanID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := l.key(tenantID, plan)
	if l.locks[k] {
		return false, nil
	}
	l.locks[k] = true
	return true, nil
}

func (l *fakeLocker) ReleaseCheckoutLock(ctx context.Context, tenantID uuid.UUID, plan domain.PlanID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, l.key(tenantID, plan))
}

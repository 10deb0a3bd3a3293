package repository

import (
	"context"
	"sync"
	"time"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/google/uuid"
)

// In-memory repository implementations. Used by tests and by local
// development without a database. The conditional operations hold the
// same atomicity guarantees as the SQL versions, via the mutex.

// InMemoryTenantRepository implements TenantRepository in memory.
type InMemoryTenantRepository struct {
	tenants map[uuid.UUID]domain.Tenant
	mutex   sync.RWMutex
}

// NewInMemoryTenantRepository creates an empty in-memory tenant repository.
func NewInMemoryTenantRepository() *InMemoryTenantRepository {
	return &InMemoryTenantRepository{tenants: make(map[uuid.UUID]domain.Tenant)}
}

// Create stores a new tenant.
func (r *InMemoryTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.tenants[tenant.ID]; exists {
		return ErrDuplicate
	}
	for _, t := range r.tenants {
		if t.Slug == tenant.Slug {
			return ErrDuplicate
		}
	}

	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	r.tenants[tenant.ID] = *tenant
	return nil
}

// GetByID returns a copy of the tenant with the given id.
func (r *InMemoryTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	tenant, exists := r.tenants[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &tenant, nil
}

// GetBySlug returns a copy of the tenant with the given slug.
func (r *InMemoryTenantRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, tenant := range r.tenants {
		if tenant.Slug == slug {
			t := tenant
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

// Update replaces the stored tenant.
func (r *InMemoryTenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.tenants[tenant.ID]; !exists {
		return ErrNotFound
	}
	tenant.UpdatedAt = time.Now()
	r.tenants[tenant.ID] = *tenant
	return nil
}

// ListOverdueSince returns active tenants overdue since the cutoff.
func (r *InMemoryTenantRepository) ListOverdueSince(ctx context.Context, cutoff time.Time) ([]domain.Tenant, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var out []domain.Tenant
	for _, t := range r.tenants {
		if t.Status == domain.TenantStatusActive && t.PaymentOverdueAt != nil && !t.PaymentOverdueAt.After(cutoff) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ListDueChanges returns tenants whose scheduled change has fallen due.
func (r *InMemoryTenantRepository) ListDueChanges(ctx context.Context, now time.Time) ([]domain.Tenant, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var out []domain.Tenant
	for _, t := range r.tenants {
		if t.PendingChange.Due(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

// InMemoryCouponRepository implements CouponRepository in memory.
type InMemoryCouponRepository struct {
	coupons map[string]domain.Coupon
	mutex   sync.Mutex
}

// NewInMemoryCouponRepository creates an empty in-memory coupon repository.
func NewInMemoryCouponRepository() *InMemoryCouponRepository {
	return &InMemoryCouponRepository{coupons: make(map[string]domain.Coupon)}
}

// Create stores a new coupon.
func (r *InMemoryCouponRepository) Create(ctx context.Context, coupon *domain.Coupon) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	code := domain.NormalizeCouponCode(coupon.Code)
	if _, exists := r.coupons[code]; exists {
		return ErrDuplicate
	}

	coupon.Code = code
	now := time.Now()
	coupon.CreatedAt = now
	coupon.UpdatedAt = now
	r.coupons[code] = *coupon
	return nil
}

// GetByCode returns a copy of the coupon with the given code.
func (r *InMemoryCouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	coupon, exists := r.coupons[domain.NormalizeCouponCode(code)]
	if !exists {
		return nil, ErrNotFound
	}
	return &coupon, nil
}

// SetActive toggles a coupon on or off.
func (r *InMemoryCouponRepository) SetActive(ctx context.Context, code string, active bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	coupon, exists := r.coupons[domain.NormalizeCouponCode(code)]
	if !exists {
		return ErrNotFound
	}
	coupon.IsActive = active
	coupon.UpdatedAt = time.Now()
	r.coupons[coupon.Code] = coupon
	return nil
}

// Redeem performs the conditional increment under the mutex.
func (r *InMemoryCouponRepository) Redeem(ctx context.Context, code string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	coupon, exists := r.coupons[domain.NormalizeCouponCode(code)]
	if !exists {
		return ErrConditionFailed
	}
	if !coupon.IsActive {
		return ErrConditionFailed
	}
	if coupon.MaxUses != nil && coupon.CurrentUses >= *coupon.MaxUses {
		return ErrConditionFailed
	}

	coupon.CurrentUses++
	coupon.UpdatedAt = time.Now()
	r.coupons[coupon.Code] = coupon
	return nil
}

// InMemoryGrantedRepository implements GrantedAccountRepository in memory.
type InMemoryGrantedRepository struct {
	accounts map[string]domain.GrantedFreeAccount
	mutex    sync.Mutex
}

// NewInMemoryGrantedRepository creates an empty in-memory granted-account repository.
func NewInMemoryGrantedRepository() *InMemoryGrantedRepository {
	return &InMemoryGrantedRepository{accounts: make(map[string]domain.GrantedFreeAccount)}
}

// Create stores a new granted account.
func (r *InMemoryGrantedRepository) Create(ctx context.Context, account *domain.GrantedFreeAccount) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	email := normalizeEmail(account.Email)
	if _, exists := r.accounts[email]; exists {
		return ErrDuplicate
	}

	account.Email = email
	account.CreatedAt = time.Now()
	r.accounts[email] = *account
	return nil
}

// GetByEmail returns a copy of the granted account for an email.
func (r *InMemoryGrantedRepository) GetByEmail(ctx context.Context, email string) (*domain.GrantedFreeAccount, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	account, exists := r.accounts[normalizeEmail(email)]
	if !exists {
		return nil, ErrNotFound
	}
	return &account, nil
}

// Consume spends the one-time token.
func (r *InMemoryGrantedRepository) Consume(ctx context.Context, email, token string, usedAt time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	account, exists := r.accounts[normalizeEmail(email)]
	if !exists {
		return ErrConditionFailed
	}
	if account.IsUsed || account.Token != token {
		return ErrConditionFailed
	}
	if account.ExpiresAt != nil && !account.ExpiresAt.After(usedAt) {
		return ErrConditionFailed
	}

	account.IsUsed = true
	used := usedAt
	account.UsedAt = &used
	r.accounts[account.Email] = account
	return nil
}

// InMemoryWebhookEventRepository implements WebhookEventRepository in memory.
type InMemoryWebhookEventRepository struct {
	events map[string]domain.WebhookEvent
	mutex  sync.Mutex
}

// NewInMemoryWebhookEventRepository creates an empty in-memory webhook event repository.
func NewInMemoryWebhookEventRepository() *InMemoryWebhookEventRepository {
	return &InMemoryWebhookEventRepository{events: make(map[string]domain.WebhookEvent)}
}

// Insert stores a new event, rejecting replays of the same external id.
func (r *InMemoryWebhookEventRepository) Insert(ctx context.Context, event *domain.WebhookEvent) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.events[event.ExternalID]; exists {
		return ErrDuplicate
	}

	event.CreatedAt = time.Now()
	if event.Status == "" {
		event.Status = domain.WebhookEventStatusPending
	}
	r.events[event.ExternalID] = *event
	return nil
}

// GetByExternalID loads a stored event by the processor's event id.
func (r *InMemoryWebhookEventRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.WebhookEvent, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	event, exists := r.events[externalID]
	if !exists {
		return nil, ErrNotFound
	}
	copied := event
	return &copied, nil
}

// MarkProcessed records successful processing.
func (r *InMemoryWebhookEventRepository) MarkProcessed(ctx context.Context, externalID string, processedAt time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	event, exists := r.events[externalID]
	if !exists {
		return ErrNotFound
	}
	event.Status = domain.WebhookEventStatusProcessed
	processed := processedAt
	event.ProcessedAt = &processed
	r.events[externalID] = event
	return nil
}

// MarkFailed records a processing failure.
func (r *InMemoryWebhookEventRepository) MarkFailed(ctx context.Context, externalID, message string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	event, exists := r.events[externalID]
	if !exists {
		return ErrNotFound
	}
	event.Status = domain.WebhookEventStatusFailed
	event.ErrorMessage = message
	r.events[externalID] = event
	return nil
}

package repository

import (
	"context"
	"time"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
	"github.com/google/uuid"
)

// CachedTenantRepository decorates a TenantRepository with the Redis
// cache. Cache errors are logged and never propagate; the database is
// the source of truth.
type CachedTenantRepository struct {
	repo  TenantRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedTenantRepository creates the caching decorator.
func NewCachedTenantRepository(repo TenantRepository, cache *RedisCacheRepository, log *logger.Logger) TenantRepository {
	return &CachedTenantRepository{repo: repo, cache: cache, log: log}
}

// Create stores the tenant and warms the cache.
func (r *CachedTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	if err := r.repo.Create(ctx, tenant); err != nil {
		return err
	}
	if err := r.cache.CacheTenant(ctx, tenant); err != nil {
		r.log.Warnw("Failed to cache tenant after creation", "error", err, "tenantID", tenant.ID)
	}
	return nil
}

// GetByID checks the cache before falling back to the database.
func (r *CachedTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	cached, err := r.cache.GetCachedTenant(ctx, id)
	if err != nil {
		r.log.Warnw("Error getting tenant from cache", "error", err, "tenantID", id)
	}
	if cached != nil {
		r.log.Debugw("Tenant found in cache", "tenantID", id)
		return cached, nil
	}

	tenant, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.cache.CacheTenant(ctx, tenant); err != nil {
		r.log.Warnw("Failed to cache tenant after fetch", "error", err, "tenantID", id)
	}
	return tenant, nil
}

// GetBySlug goes straight to the database; slug lookups are rare
// enough that a second cache index is not worth its invalidation.
func (r *CachedTenantRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return r.repo.GetBySlug(ctx, slug)
}

// Update persists the tenant and refreshes the cache.
func (r *CachedTenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	if err := r.repo.Update(ctx, tenant); err != nil {
		// The cached copy may now be stale relative to the failed
		// write's intent; drop it so the next read refetches.
		if cerr := r.cache.InvalidateTenant(ctx, tenant.ID); cerr != nil {
			r.log.Warnw("Failed to invalidate tenant cache", "error", cerr, "tenantID", tenant.ID)
		}
		return err
	}
	if err := r.cache.CacheTenant(ctx, tenant); err != nil {
		r.log.Warnw("Failed to refresh tenant cache after update", "error", err, "tenantID", tenant.ID)
	}
	return nil
}

// ListOverdueSince bypasses the cache; reconciliation must see the
// database state.
func (r *CachedTenantRepository) ListOverdueSince(ctx context.Context, cutoff time.Time) ([]domain.Tenant, error) {
	return r.repo.ListOverdueSince(ctx, cutoff)
}

// ListDueChanges bypasses the cache for the same reason.
func (r *CachedTenantRepository) ListDueChanges(ctx context.Context, now time.Time) ([]domain.Tenant, error) {
	return r.repo.ListDueChanges(ctx, now)
}

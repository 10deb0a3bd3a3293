package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantRepository is the persistence port for tenants.
type TenantRepository interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	Update(ctx context.Context, tenant *domain.Tenant) error
	// ListOverdueSince returns active tenants whose overdue marker is
	// at or before the cutoff, i.e. candidates for suspension.
	ListOverdueSince(ctx context.Context, cutoff time.Time) ([]domain.Tenant, error)
	// ListDueChanges returns tenants with a scheduled plan change whose
	// effective date has passed.
	ListDueChanges(ctx context.Context, now time.Time) ([]domain.Tenant, error)
}

const tenantColumns = `
        id, slug, name, owner_name, owner_email, plan, status,
        cycle_anchor_at, payment_overdue_at, suspended_at,
        asaas_customer_id, asaas_subscription_id, asaas_checkout_id,
        checkout_plan, checkout_link, checkout_coupon, pending_change,
        created_at, updated_at`

// postgresTenantRepo implements TenantRepository on PostgreSQL.
type postgresTenantRepo struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresTenantRepository creates the PostgreSQL tenant repository.
func NewPostgresTenantRepository(pool *pgxpool.Pool, log *logger.Logger) TenantRepository {
	return &postgresTenantRepo{pool: pool, log: log}
}

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	var pendingChange []byte
	err := row.Scan(
		&t.ID, &t.Slug, &t.Name, &t.OwnerName, &t.OwnerEmail, &t.Plan, &t.Status,
		&t.CycleAnchorAt, &t.PaymentOverdueAt, &t.SuspendedAt,
		&t.AsaasCustomerID, &t.AsaasSubscriptionID, &t.AsaasCheckoutID,
		&t.CheckoutPlan, &t.CheckoutLink, &t.CheckoutCoupon, &pendingChange,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(pendingChange) > 0 {
		if err := json.Unmarshal(pendingChange, &t.PendingChange); err != nil {
			return nil, fmt.Errorf("repository: failed to decode pending change: %w", err)
		}
	} else {
		t.PendingChange = domain.NoPendingChange()
	}
	return &t, nil
}

// Create stores a new tenant.
func (r *postgresTenantRepo) Create(ctx context.Context, tenant *domain.Tenant) error {
	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now

	pendingChange, err := json.Marshal(tenant.PendingChange)
	if err != nil {
		return fmt.Errorf("repository: failed to encode pending change: %w", err)
	}

	query := `
        INSERT INTO tenants (` + tenantColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err = r.pool.Exec(ctx, query,
		tenant.ID, tenant.Slug, tenant.Name, tenant.OwnerName, tenant.OwnerEmail,
		tenant.Plan, tenant.Status, tenant.CycleAnchorAt, tenant.PaymentOverdueAt,
		tenant.SuspendedAt, tenant.AsaasCustomerID, tenant.AsaasSubscriptionID,
		tenant.AsaasCheckoutID, tenant.CheckoutPlan, tenant.CheckoutLink,
		tenant.CheckoutCoupon, pendingChange, tenant.CreatedAt, tenant.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		r.log.Errorw("Failed to create tenant in DB", "error", err, "tenantID", tenant.ID, "slug", tenant.Slug)
		return fmt.Errorf("repository: failed to create tenant: %w", err)
	}

	r.log.Debugw("Tenant created in DB", "tenantID", tenant.ID, "slug", tenant.Slug)
	return nil
}

// GetByID returns the tenant with the given id.
func (r *postgresTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	tenant, err := scanTenant(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get tenant by ID from DB", "error", err, "tenantID", id)
		return nil, fmt.Errorf("repository: failed to get tenant by ID: %w", err)
	}
	return tenant, nil
}

// GetBySlug returns the tenant with the given slug.
func (r *postgresTenantRepo) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = $1`
	tenant, err := scanTenant(r.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get tenant by slug from DB", "error", err, "slug", slug)
		return nil, fmt.Errorf("repository: failed to get tenant by slug: %w", err)
	}
	return tenant, nil
}

// Update persists the mutable tenant fields.
func (r *postgresTenantRepo) Update(ctx context.Context, tenant *domain.Tenant) error {
	tenant.UpdatedAt = time.Now()

	pendingChange, err := json.Marshal(tenant.PendingChange)
	if err != nil {
		return fmt.Errorf("repository: failed to encode pending change: %w", err)
	}

	query := `
        UPDATE tenants SET
            name = $2, owner_name = $3, owner_email = $4, plan = $5,
            status = $6, cycle_anchor_at = $7, payment_overdue_at = $8,
            suspended_at = $9, asaas_customer_id = $10,
            asaas_subscription_id = $11, asaas_checkout_id = $12,
            checkout_plan = $13, checkout_link = $14, checkout_coupon = $15,
            pending_change = $16, updated_at = $17
        WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query,
		tenant.ID, tenant.Name, tenant.OwnerName, tenant.OwnerEmail, tenant.Plan,
		tenant.Status, tenant.CycleAnchorAt, tenant.PaymentOverdueAt,
		tenant.SuspendedAt, tenant.AsaasCustomerID, tenant.AsaasSubscriptionID,
		tenant.AsaasCheckoutID, tenant.CheckoutPlan, tenant.CheckoutLink,
		tenant.CheckoutCoupon, pendingChange, tenant.UpdatedAt,
	)
	if err != nil {
		r.log.Errorw("Failed to update tenant in DB", "error", err, "tenantID", tenant.ID)
		return fmt.Errorf("repository: failed to update tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.log.Debugw("Tenant updated in DB", "tenantID", tenant.ID, "status", tenant.Status, "plan", tenant.Plan)
	return nil
}

func (r *postgresTenantRepo) listTenants(ctx context.Context, query string, args ...any) ([]domain.Tenant, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan tenant row: %w", err)
		}
		tenants = append(tenants, *tenant)
	}
	return tenants, rows.Err()
}

// ListOverdueSince returns active tenants overdue since the cutoff.
func (r *postgresTenantRepo) ListOverdueSince(ctx context.Context, cutoff time.Time) ([]domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + `
        FROM tenants
        WHERE status = $1 AND payment_overdue_at IS NOT NULL AND payment_overdue_at <= $2
        ORDER BY payment_overdue_at`
	return r.listTenants(ctx, query, domain.TenantStatusActive, cutoff)
}

// ListDueChanges returns tenants whose scheduled change has fallen due.
func (r *postgresTenantRepo) ListDueChanges(ctx context.Context, now time.Time) ([]domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + `
        FROM tenants
        WHERE pending_change->>'kind' <> 'none'
          AND (pending_change->>'effective_at')::timestamptz <= $1
        ORDER BY updated_at`
	return r.listTenants(ctx, query, now)
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CouponRepository is the persistence port for coupons. Codes are
// stored normalized (upper case, trimmed).
type CouponRepository interface {
	Create(ctx context.Context, coupon *domain.Coupon) error
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	SetActive(ctx context.Context, code string, active bool) error
	// Redeem atomically increments current_uses, guarded by the usage
	// cap in the UPDATE itself. Two concurrent redemptions of a coupon
	// with one use left therefore cannot both succeed; the loser gets
	// ErrConditionFailed.
	Redeem(ctx context.Context, code string) error
}

const couponColumns = `
        code, discount_type, discount_value, max_uses, current_uses,
        valid_from, valid_until, is_active, created_at, updated_at`

// postgresCouponRepo implements CouponRepository on PostgreSQL.
type postgresCouponRepo struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresCouponRepository creates the PostgreSQL coupon repository.
func NewPostgresCouponRepository(pool *pgxpool.Pool, log *logger.Logger) CouponRepository {
	return &postgresCouponRepo{pool: pool, log: log}
}

// Create stores a new coupon.
func (r *postgresCouponRepo) Create(ctx context.Context, coupon *domain.Coupon) error {
	now := time.Now()
	coupon.Code = domain.NormalizeCouponCode(coupon.Code)
	coupon.CreatedAt = now
	coupon.UpdatedAt = now

	query := `
        INSERT INTO coupons (` + couponColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, query,
		coupon.Code, coupon.DiscountType, coupon.DiscountValue, coupon.MaxUses,
		coupon.CurrentUses, coupon.ValidFrom, coupon.ValidUntil, coupon.IsActive,
		coupon.CreatedAt, coupon.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		r.log.Errorw("Failed to create coupon in DB", "error", err, "code", coupon.Code)
		return fmt.Errorf("repository: failed to create coupon: %w", err)
	}
	return nil
}

// GetByCode returns a coupon by its normalized code.
func (r *postgresCouponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	code = domain.NormalizeCouponCode(code)

	var c domain.Coupon
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&c.Code, &c.DiscountType, &c.DiscountValue, &c.MaxUses, &c.CurrentUses,
		&c.ValidFrom, &c.ValidUntil, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get coupon from DB", "error", err, "code", code)
		return nil, fmt.Errorf("repository: failed to get coupon: %w", err)
	}
	return &c, nil
}

// SetActive toggles a coupon on or off.
func (r *postgresCouponRepo) SetActive(ctx context.Context, code string, active bool) error {
	code = domain.NormalizeCouponCode(code)

	tag, err := r.pool.Exec(ctx,
		`UPDATE coupons SET is_active = $2, updated_at = $3 WHERE code = $1`,
		code, active, time.Now(),
	)
	if err != nil {
		r.log.Errorw("Failed to toggle coupon in DB", "error", err, "code", code)
		return fmt.Errorf("repository: failed to toggle coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Redeem performs the conditional increment. The cap check lives in
// the WHERE clause so the invariant holds under concurrent callers
// without any application-side locking.
func (r *postgresCouponRepo) Redeem(ctx context.Context, code string) error {
	code = domain.NormalizeCouponCode(code)

	query := `
        UPDATE coupons
        SET current_uses = current_uses + 1, updated_at = $2
        WHERE code = $1
          AND is_active
          AND (max_uses IS NULL OR current_uses < max_uses)`
	tag, err := r.pool.Exec(ctx, query, code, time.Now())
	if err != nil {
		r.log.Errorw("Failed to redeem coupon in DB", "error", err, "code", code)
		return fmt.Errorf("repository: failed to redeem coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConditionFailed
	}

	r.log.Debugw("Coupon redeemed", "code", code)
	return nil
}

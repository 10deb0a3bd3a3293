package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
	"github.com/ecclesia-cloud/billing-service/internal/metrics"
	"github.com/ecclesia-cloud/billing-service/internal/repository"
	"github.com/ecclesia-cloud/billing-service/pkg/logger"
)

// CouponService validates and redeems discount coupons.
type CouponService interface {
	// Validate checks a code against the clock and usage cap without
	// side effects. Rejections come back as *domain.CouponError.
	Validate(ctx context.Context, code string, now time.Time) (*domain.Coupon, error)
	// Redeem consumes one use. It re-validates first, then relies on
	// the repository's conditional increment for the cap, so a
	// concurrent redeemer losing the race gets USAGE_EXHAUSTED even
	// though its earlier Validate succeeded.
	Redeem(ctx context.Context, code string, now time.Time) error
	Create(ctx context.Context, coupon *domain.Coupon) error
	SetActive(ctx context.Context, code string, active bool) error
}

type couponService struct {
	repo    repository.CouponRepository
	metrics metrics.BillingMetrics
	log     *logger.Logger
}

// NewCouponService creates the coupon service.
func NewCouponService(repo repository.CouponRepository, m metrics.BillingMetrics, log *logger.Logger) CouponService {
	return &couponService{repo: repo, metrics: m, log: log}
}

// Validate resolves and checks the coupon.
func (s *couponService) Validate(ctx context.Context, code string, now time.Time) (*domain.Coupon, error) {
	normalized := domain.NormalizeCouponCode(code)

	coupon, err := s.repo.GetByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewCouponError(normalized, domain.CouponNotFound)
		}
		return nil, err
	}

	if reason := coupon.Usability(now); reason != "" {
		return nil, domain.NewCouponError(normalized, reason)
	}
	return coupon, nil
}

// Redeem validates and then increments the usage counter.
func (s *couponService) Redeem(ctx context.Context, code string, now time.Time) error {
	coupon, err := s.Validate(ctx, code, now)
	if err != nil {
		s.metrics.IncCouponRedemption("rejected")
		return err
	}

	if err := s.repo.Redeem(ctx, coupon.Code); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			// Lost the race against a concurrent redemption.
			s.metrics.IncCouponRedemption("exhausted")
			return domain.NewCouponError(coupon.Code, domain.CouponUsageExhausted)
		}
		s.metrics.IncCouponRedemption("error")
		return err
	}

	s.metrics.IncCouponRedemption("ok")
	s.log.Infow("Coupon redeemed", "code", coupon.Code)
	return nil
}

// Create stores a new coupon with a normalized code.
func (s *couponService) Create(ctx context.Context, coupon *domain.Coupon) error {
	coupon.Code = domain.NormalizeCouponCode(coupon.Code)
	if coupon.Code == "" {
		return domain.ErrInvalidInput
	}
	if coupon.DiscountType != domain.DiscountPercentage && coupon.DiscountType != domain.DiscountFixed {
		return domain.ErrInvalidInput
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("%w: coupon %s already exists", domain.ErrDuplicate, coupon.Code)
		}
		return err
	}
	return nil
}

// SetActive toggles a coupon.
func (s *couponService) SetActive(ctx context.Context, code string, active bool) error {
	if err := s.repo.SetActive(ctx, code, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NewCouponError(code, domain.CouponNotFound)
		}
		return err
	}
	return nil
}

package domain

import (
	"strings"
	"time"
)

// DiscountType discriminates percentage and fixed-amount coupons.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// CouponRejectionReason explains why a coupon cannot be used.
type CouponRejectionReason string

const (
	CouponNotFound       CouponRejectionReason = "NOT_FOUND"
	CouponInactive       CouponRejectionReason = "INACTIVE"
	CouponNotYetValid    CouponRejectionReason = "NOT_YET_VALID"
	CouponExpired        CouponRejectionReason = "EXPIRED"
	CouponUsageExhausted CouponRejectionReason = "USAGE_EXHAUSTED"
)

// Coupon is a discount code. DiscountValue is a percentage for
// percentage coupons and centavos for fixed coupons.
type Coupon struct {
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discount_type"`
	DiscountValue int64        `json:"discount_value"`
	MaxUses       *int         `json:"max_uses,omitempty"`
	CurrentUses   int          `json:"current_uses"`
	ValidFrom     time.Time    `json:"valid_from"`
	ValidUntil    *time.Time   `json:"valid_until,omitempty"`
	IsActive      bool         `json:"is_active"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NormalizeCouponCode canonicalizes a user-supplied code. Lookup is
// case-insensitive and ignores surrounding whitespace.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Usability checks the coupon against the clock and usage cap.
// An empty reason means the coupon is usable.
func (c *Coupon) Usability(now time.Time) CouponRejectionReason {
	if !c.IsActive {
		return CouponInactive
	}
	if now.Before(c.ValidFrom) {
		return CouponNotYetValid
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return CouponExpired
	}
	if c.MaxUses != nil && c.CurrentUses >= *c.MaxUses {
		return CouponUsageExhausted
	}
	return ""
}

// Apply returns the price in centavos after the discount. The result
// never drops below zero.
func (c *Coupon) Apply(priceCents int64) int64 {
	var discounted int64
	switch c.DiscountType {
	case DiscountPercentage:
		discounted = priceCents - priceCents*c.DiscountValue/100
	case DiscountFixed:
		discounted = priceCents - c.DiscountValue
	default:
		return priceCents
	}
	if discounted < 0 {
		return 0
	}
	return discounted
}

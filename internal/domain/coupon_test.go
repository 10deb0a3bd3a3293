package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCouponCode(t *testing.T) {
	assert.Equal(t, "BEMVINDO10", NormalizeCouponCode("  bemvindo10 "))
	assert.Equal(t, "NATAL2025", NormalizeCouponCode("Natal2025"))
	assert.Equal(t, "", NormalizeCouponCode("   "))
}

func TestCouponUsability(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, -1, 0)
	future := now.AddDate(0, 1, 0)
	maxUses := 5

	tests := []struct {
		name   string
		coupon Coupon
		want   CouponRejectionReason
	}{
		{
			name:   "usable",
			coupon: Coupon{IsActive: true, ValidFrom: past},
			want:   "",
		},
		{
			name:   "inactive",
			coupon: Coupon{IsActive: false, ValidFrom: past},
			want:   CouponInactive,
		},
		{
			name:   "not yet valid",
			coupon: Coupon{IsActive: true, ValidFrom: future},
			want:   CouponNotYetValid,
		},
		{
			name:   "expired",
			coupon: Coupon{IsActive: true, ValidFrom: past.AddDate(0, -1, 0), ValidUntil: &past},
			want:   CouponExpired,
		},
		{
			name:   "usage exhausted",
			coupon: Coupon{IsActive: true, ValidFrom: past, MaxUses: &maxUses, CurrentUses: 5},
			want:   CouponUsageExhausted,
		},
		{
			name:   "one use left",
			coupon: Coupon{IsActive: true, ValidFrom: past, MaxUses: &maxUses, CurrentUses: 4},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coupon.Usability(now))
		})
	}
}

func TestCouponApply(t *testing.T) {
	tests := []struct {
		name       string
		coupon     Coupon
		priceCents int64
		want       int64
	}{
		{
			name:       "ten percent off ouro",
			coupon:     Coupon{DiscountType: DiscountPercentage, DiscountValue: 10},
			priceCents: 11900,
			want:       10710,
		},
		{
			name:       "hundred percent off",
			coupon:     Coupon{DiscountType: DiscountPercentage, DiscountValue: 100},
			priceCents: 6900,
			want:       0,
		},
		{
			name:       "fixed twenty reais off",
			coupon:     Coupon{DiscountType: DiscountFixed, DiscountValue: 2000},
			priceCents: 6900,
			want:       4900,
		},
		{
			name:       "fixed discount larger than price clamps to zero",
			coupon:     Coupon{DiscountType: DiscountFixed, DiscountValue: 9900},
			priceCents: 6900,
			want:       0,
		},
		{
			name:       "unknown type leaves price unchanged",
			coupon:     Coupon{DiscountType: "cashback", DiscountValue: 10},
			priceCents: 6900,
			want:       6900,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coupon.Apply(tt.priceCents))
		})
	}
}

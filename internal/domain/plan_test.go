package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlan(t *testing.T) {
	plan, err := GetPlan(PlanOuro)
	require.NoError(t, err)
	assert.Equal(t, PlanOuro, plan.ID)
	assert.Equal(t, int64(11900), plan.MonthlyPriceCents)

	_, err = GetPlan("platina")
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestAllPlansOrderedByPrice(t *testing.T) {
	plans := AllPlans()
	require.Len(t, plans, 4)

	for i := 1; i < len(plans); i++ {
		assert.Greater(t, plans[i].MonthlyPriceCents, plans[i-1].MonthlyPriceCents,
			"plan %s should cost more than %s", plans[i].ID, plans[i-1].ID)
	}
}

func TestComparePlans(t *testing.T) {
	tests := []struct {
		name string
		from PlanID
		to   PlanID
		want PlanComparison
	}{
		{"free to prata is upgrade", PlanFree, PlanPrata, PlanUpgrade},
		{"prata to diamante is upgrade", PlanPrata, PlanDiamante, PlanUpgrade},
		{"ouro to prata is downgrade", PlanOuro, PlanPrata, PlanDowngrade},
		{"diamante to free is downgrade", PlanDiamante, PlanFree, PlanDowngrade},
		{"same plan", PlanOuro, PlanOuro, PlanSame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComparePlans(tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Comparison must be antisymmetric: if a->b is an upgrade, b->a has to
// be a downgrade, and vice versa.
func TestComparePlansAntisymmetry(t *testing.T) {
	all := AllPlans()
	for _, a := range all {
		for _, b := range all {
			forward, err := ComparePlans(a.ID, b.ID)
			require.NoError(t, err)
			backward, err := ComparePlans(b.ID, a.ID)
			require.NoError(t, err)

			switch forward {
			case PlanUpgrade:
				assert.Equal(t, PlanDowngrade, backward, "%s->%s", a.ID, b.ID)
			case PlanDowngrade:
				assert.Equal(t, PlanUpgrade, backward, "%s->%s", a.ID, b.ID)
			case PlanSame:
				assert.Equal(t, PlanSame, backward, "%s->%s", a.ID, b.ID)
			}
		}
	}
}

func TestComparePlansUnknown(t *testing.T) {
	_, err := ComparePlans(PlanFree, "platina")
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = ComparePlans("platina", PlanFree)
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

// Package billing contains the plan lifecycle core: the pro-rata
// calculator and the subscription state machine. Everything here is
// pure; persistence and side effects live in the service layer.
package billing

import (
	"time"

	"github.com/ecclesia-cloud/billing-service/internal/domain"
)

// ProRata is the unused-value credit owed when a paid plan is
// downgraded mid cycle. Amounts are in centavos.
type ProRata struct {
	CreditCents      int64 `json:"credit_cents"`
	DaysRemaining    int   `json:"days_remaining"`
	UnusedValueCents int64 `json:"unused_value_cents"`
}

// CurrentCycle returns the start and end of the billing cycle that
// contains now, given the cycle anchor date. Cycles renew monthly from
// the anchor.
func CurrentCycle(anchor, now time.Time) (start, end time.Time) {
	start = anchor
	end = start.AddDate(0, 1, 0)
	for !now.Before(end) {
		start = end
		end = start.AddDate(0, 1, 0)
	}
	return start, end
}

// NextCycleDate returns the first cycle boundary after now.
func NextCycleDate(anchor, now time.Time) time.Time {
	_, end := CurrentCycle(anchor, now)
	return end
}

// CalculateProRata computes the credit for moving from currentPlan to
// newPlan at now. It applies only to downgrades from a paid plan; any
// other combination yields nil. The full unused value of the current
// plan is returned as credit; the new plan's pro-rated cost is not
// charged against it.
func CalculateProRata(currentPlan, newPlan domain.PlanID, anchor, now time.Time) (*ProRata, error) {
	cmp, err := domain.ComparePlans(currentPlan, newPlan)
	if err != nil {
		return nil, err
	}
	if cmp != domain.PlanDowngrade || currentPlan == domain.PlanFree {
		return nil, nil
	}

	current, err := domain.GetPlan(currentPlan)
	if err != nil {
		return nil, err
	}

	start, end := CurrentCycle(anchor, now)
	if !now.Before(end) {
		return &ProRata{}, nil
	}

	daysInCycle := int(end.Sub(start) / (24 * time.Hour))
	daysRemaining := int(end.Sub(now) / (24 * time.Hour))
	if daysRemaining < 0 {
		daysRemaining = 0
	}
	// An anchor ahead of now would otherwise credit more than a full
	// month.
	if daysRemaining > daysInCycle {
		daysRemaining = daysInCycle
	}
	if daysInCycle <= 0 {
		return &ProRata{}, nil
	}

	unused := current.MonthlyPriceCents * int64(daysRemaining) / int64(daysInCycle)
	return &ProRata{
		CreditCents:      unused,
		DaysRemaining:    daysRemaining,
		UnusedValueCents: unused,
	}, nil
}

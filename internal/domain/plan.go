package domain

// PlanID identifies one of the fixed billing tiers.
type PlanID string

const (
	PlanFree     PlanID = "free"
	PlanPrata    PlanID = "prata"
	PlanOuro     PlanID = "ouro"
	PlanDiamante PlanID = "diamante"
)

// PlanComparison is the result of comparing two plans by price.
type PlanComparison int

const (
	PlanSame PlanComparison = iota
	PlanUpgrade
	PlanDowngrade
)

// Plan describes a billing tier. Prices are in centavos (BRL).
type Plan struct {
	ID                  PlanID   `json:"id"`
	Name                string   `json:"name"`
	MonthlyPriceCents   int64    `json:"monthly_price_cents"`
	Features            []string `json:"features"`
	AsaasBillingEnabled bool     `json:"-"`
}

// MonthlyPriceReais returns the monthly price formatted in reais.
func (p Plan) MonthlyPriceReais() float64 {
	return float64(p.MonthlyPriceCents) / 100
}

// planCatalog is the closed set of tiers. Prices strictly increase
// from free to diamante; ComparePlans relies on that ordering.
var planCatalog = map[PlanID]Plan{
	PlanFree: {
		ID:                PlanFree,
		Name:              "Gratuito",
		MonthlyPriceCents: 0,
		Features:          []string{"site", "membros:50"},
	},
	PlanPrata: {
		ID:                  PlanPrata,
		Name:                "Prata",
		MonthlyPriceCents:   6900,
		Features:            []string{"site", "membros:200", "blog"},
		AsaasBillingEnabled: true,
	},
	PlanOuro: {
		ID:                  PlanOuro,
		Name:                "Ouro",
		MonthlyPriceCents:   11900,
		Features:            []string{"site", "membros:1000", "blog", "chat"},
		AsaasBillingEnabled: true,
	},
	PlanDiamante: {
		ID:                  PlanDiamante,
		Name:                "Diamante",
		MonthlyPriceCents:   19900,
		Features:            []string{"site", "membros:ilimitado", "blog", "chat", "transmissao"},
		AsaasBillingEnabled: true,
	},
}

// AllPlans returns the catalog ordered from cheapest to most expensive.
func AllPlans() []Plan {
	return []Plan{
		planCatalog[PlanFree],
		planCatalog[PlanPrata],
		planCatalog[PlanOuro],
		planCatalog[PlanDiamante],
	}
}

// GetPlan resolves a plan by id. Unknown ids are a configuration
// error on the caller's side and yield ErrInvalidPlan.
func GetPlan(id PlanID) (Plan, error) {
	plan, ok := planCatalog[id]
	if !ok {
		return Plan{}, ErrInvalidPlan
	}
	return plan, nil
}

// ComparePlans orders plan b relative to plan a by monthly price.
// The result is from a's point of view: moving from a to b.
func ComparePlans(a, b PlanID) (PlanComparison, error) {
	planA, err := GetPlan(a)
	if err != nil {
		return PlanSame, err
	}
	planB, err := GetPlan(b)
	if err != nil {
		return PlanSame, err
	}

	switch {
	case planB.MonthlyPriceCents > planA.MonthlyPriceCents:
		return PlanUpgrade, nil
	case planB.MonthlyPriceCents < planA.MonthlyPriceCents:
		return PlanDowngrade, nil
	default:
		return PlanSame, nil
	}
}

package domain

import "github.com/shopspring/decimal"

type SystemName string

const (
	SystemStructural SystemName = "STRUCTURAL"
	SystemElectrical SystemName = "ELECTRICAL"
	SystemPlumbing   SystemName = "PLUMBING"
	SystemHVAC       SystemName = "HVAC"
	SystemRoof       SystemName = "ROOF"
	SystemOther      SystemName = "OTHER"
)

type IssuePriority string

const (
	PriorityUrgent IssuePriority = "URGENT"
	PriorityHigh   IssuePriority = "HIGH"
	PriorityMedium IssuePriority = "MEDIUM"
)

type FlaggedIssue struct {
	System SystemName `json:"system"`
	// Severity is the issue's weight in [0,1]; it feeds the multiplicative
	// condition penalty directly.
	Severity       float64         `json:"severity"`
	Description    string          `json:"description"`
	RepairCostLow  decimal.Decimal `json:"repairCostLow"`
	RepairCostHigh decimal.Decimal `json:"repairCostHigh"`
}

func (i FlaggedIssue) RepairCostMidpoint() decimal.Decimal {
	two := decimal.NewFromInt(2)
	return i.RepairCostLow.Add(i.RepairCostHigh).Div(two)
}

// ConditionAssessment is pre-structured input; free-text inspection
// parsing happens upstream of the core.
type ConditionAssessment struct {
	// SystemRatings is an ordinal 0 (failed) to 5 (like new) per system.
	SystemRatings  map[SystemName]int `json:"systemRatings"`
	Issues         []FlaggedIssue     `json:"issues"`
	AggregateScore float64            `json:"aggregateScore"`
}

type PrioritizedIssue struct {
	Issue    FlaggedIssue    `json:"issue"`
	Priority IssuePriority   `json:"priority"`
	Midpoint decimal.Decimal `json:"midpoint"`
}

// ConditionAdjustment is the adjuster's output: a market-perception
// multiplier and a separately reported cost-to-cure. The two are never
// merged.
type ConditionAdjustment struct {
	Multiplier decimal.Decimal    `json:"multiplier"`
	RepairCost decimal.Decimal    `json:"repairCost"`
	Priorities []PrioritizedIssue `json:"priorities"`
	// Unassessed marks the neutral fallback so reconciliation can lower
	// confidence accordingly.
	Unassessed bool `json:"unassessed"`
}

func NeutralCondition() ConditionAdjustment {
	return ConditionAdjustment{
		Multiplier: decimal.NewFromInt(1),
		RepairCost: decimal.Zero,
		Unassessed: true,
	}
}

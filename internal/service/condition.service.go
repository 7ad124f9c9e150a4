package service

import (
	"fmt"
	"sort"

	"propval/internal"
	"propval/internal/domain"

	"github.com/shopspring/decimal"
)

type ConditionService interface {
	Adjust(assessment *domain.ConditionAssessment) domain.ConditionAdjustment
}

type conditionServiceHandler struct {
	Config internal.ValuationConfig
}

func NewConditionService(cfg internal.ValuationConfig) ConditionService {
	return conditionServiceHandler{Config: cfg}
}

// Adjust translates a structured condition assessment into a market
// multiplier and a cost-to-cure. Penalties combine multiplicatively so
// many minor issues don't out-penalize one severe issue:
// multiplier = prod(1 - severity_i), clamped to the configured floor.
// Repair cost is a separate cash-outflow line, never folded into the
// multiplier. A missing assessment yields the neutral adjustment,
// explicitly flagged unassessed.
func (h conditionServiceHandler) Adjust(assessment *domain.ConditionAssessment) domain.ConditionAdjustment {
	if assessment == nil {
		return domain.NeutralCondition()
	}

	issues := append([]domain.FlaggedIssue{}, assessment.Issues...)
	issues = append(issues, h.deriveWornSystemIssues(assessment)...)

	multiplier := 1.0
	for _, issue := range issues {
		severity := issue.Severity
		if severity < 0 {
			severity = 0
		}
		if severity > 1 {
			severity = 1
		}
		multiplier *= 1 - severity
	}
	if multiplier < h.Config.ConditionMultiplierFloor {
		multiplier = h.Config.ConditionMultiplierFloor
	}

	costIndex := decimal.NewFromFloat(h.Config.RegionalCostIndex)
	repairCost := decimal.Zero
	priorities := make([]domain.PrioritizedIssue, 0, len(issues))
	for _, issue := range issues {
		midpoint := issue.RepairCostMidpoint().Mul(costIndex).Round(2)
		repairCost = repairCost.Add(midpoint)
		priorities = append(priorities, domain.PrioritizedIssue{
			Issue:    issue,
			Priority: h.priority(midpoint),
			Midpoint: midpoint,
		})
	}
	sort.SliceStable(priorities, func(i, j int) bool {
		return priorities[i].Midpoint.GreaterThan(priorities[j].Midpoint)
	})

	return domain.ConditionAdjustment{
		Multiplier: decimal.NewFromFloat(multiplier).Round(4),
		RepairCost: repairCost,
		Priorities: priorities,
		Unassessed: false,
	}
}

// deriveWornSystemIssues flags systems rated at or past the end of
// their service life (rating at or below the threshold) that the
// inspection did not already flag, priced at typical replacement cost.
func (h conditionServiceHandler) deriveWornSystemIssues(assessment *domain.ConditionAssessment) []domain.FlaggedIssue {
	flagged := map[domain.SystemName]bool{}
	for _, issue := range assessment.Issues {
		flagged[issue.System] = true
	}

	derived := []domain.FlaggedIssue{}
	for system, rating := range assessment.SystemRatings {
		if rating > h.Config.SystemRatingFlagThreshold || flagged[system] {
			continue
		}
		cost, ok := h.Config.SystemReplacementCosts[string(system)]
		if !ok {
			cost = h.Config.SystemReplacementCosts[string(domain.SystemOther)]
		}
		derived = append(derived, domain.FlaggedIssue{
			System:         system,
			Severity:       h.Config.WornSystemSeverity,
			Description:    fmt.Sprintf("%s rated %d/5, at or past expected service life", system, rating),
			RepairCostLow:  decimal.NewFromFloat(cost * 0.8),
			RepairCostHigh: decimal.NewFromFloat(cost * 1.2),
		})
	}
	return derived
}

func (h conditionServiceHandler) priority(midpoint decimal.Decimal) domain.IssuePriority {
	if midpoint.GreaterThanOrEqual(decimal.NewFromFloat(h.Config.UrgentCostThreshold)) {
		return domain.PriorityUrgent
	}
	if midpoint.GreaterThanOrEqual(decimal.NewFromFloat(h.Config.HighCostThreshold)) {
		return domain.PriorityHigh
	}
	return domain.PriorityMedium
}

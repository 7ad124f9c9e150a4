package service

import (
	"testing"

	"propval/internal"
	"propval/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func issue(system domain.SystemName, severity float64, costLow, costHigh int64) domain.FlaggedIssue {
	return domain.FlaggedIssue{
		System:         system,
		Severity:       severity,
		RepairCostLow:  decimal.NewFromInt(costLow),
		RepairCostHigh: decimal.NewFromInt(costHigh),
	}
}

func TestConditionAdjust(t *testing.T) {
	cfg := internal.DefaultValuationConfig()
	svc := NewConditionService(cfg)

	t.Run("missing assessment yields neutral unassessed adjustment", func(t *testing.T) {
		adjustment := svc.Adjust(nil)

		require.True(t, adjustment.Unassessed)
		require.True(t, adjustment.Multiplier.Equal(decimal.NewFromInt(1)))
		require.True(t, adjustment.RepairCost.IsZero())
		require.Empty(t, adjustment.Priorities)
	})

	t.Run("penalties combine multiplicatively", func(t *testing.T) {
		assessment := &domain.ConditionAssessment{
			Issues: []domain.FlaggedIssue{
				issue(domain.SystemRoof, 0.1, 2_000, 4_000),
				issue(domain.SystemPlumbing, 0.05, 500, 1_500),
			},
		}

		adjustment := svc.Adjust(assessment)

		require.False(t, adjustment.Unassessed)
		// (1-0.1)(1-0.05) = 0.855
		require.InDelta(t, 0.855, adjustment.Multiplier.InexactFloat64(), 1e-9)
	})

	t.Run("severe issues clamp to the multiplier floor", func(t *testing.T) {
		assessment := &domain.ConditionAssessment{
			Issues: []domain.FlaggedIssue{
				issue(domain.SystemStructural, 0.6, 20_000, 40_000),
				issue(domain.SystemElectrical, 0.2, 4_000, 8_000),
			},
		}

		adjustment := svc.Adjust(assessment)

		// (1-0.6)(1-0.2) = 0.32 is below the 0.5 floor
		require.InDelta(t, cfg.ConditionMultiplierFloor, adjustment.Multiplier.InexactFloat64(), 1e-9)
	})

	t.Run("out-of-range severities are clamped into [0,1]", func(t *testing.T) {
		assessment := &domain.ConditionAssessment{
			Issues: []domain.FlaggedIssue{
				issue(domain.SystemOther, 1.5, 100, 200),
				issue(domain.SystemOther, -0.3, 100, 200),
			},
		}

		adjustment := svc.Adjust(assessment)

		require.InDelta(t, cfg.ConditionMultiplierFloor, adjustment.Multiplier.InexactFloat64(), 1e-9)
	})

	t.Run("repair cost sums midpoints and prioritizes by cost", func(t *testing.T) {
		assessment := &domain.ConditionAssessment{
			Issues: []domain.FlaggedIssue{
				issue(domain.SystemPlumbing, 0.05, 1_000, 3_000),
				issue(domain.SystemRoof, 0.2, 8_000, 12_000),
				issue(domain.SystemOther, 0.01, 200, 400),
			},
		}

		adjustment := svc.Adjust(assessment)

		require.True(t, adjustment.RepairCost.Equal(decimal.NewFromInt(12_300)))

		require.Len(t, adjustment.Priorities, 3)
		require.Equal(t, domain.SystemRoof, adjustment.Priorities[0].Issue.System)
		require.Equal(t, domain.PriorityUrgent, adjustment.Priorities[0].Priority)
		require.Equal(t, domain.SystemPlumbing, adjustment.Priorities[1].Issue.System)
		require.Equal(t, domain.PriorityHigh, adjustment.Priorities[1].Priority)
		require.Equal(t, domain.SystemOther, adjustment.Priorities[2].Issue.System)
		require.Equal(t, domain.PriorityMedium, adjustment.Priorities[2].Priority)
	})

	t.Run("worn systems derive an issue at replacement cost", func(t *testing.T) {
		assessment := &domain.ConditionAssessment{
			SystemRatings: map[domain.SystemName]int{
				domain.SystemRoof: 1,
				domain.SystemHVAC: 4,
			},
		}

		adjustment := svc.Adjust(assessment)

		require.Len(t, adjustment.Priorities, 1)
		derived := adjustment.Priorities[0]
		require.Equal(t, domain.SystemRoof, derived.Issue.System)
		require.Contains(t, derived.Issue.Description, "service life")
		// midpoint of 0.8x..1.2x the 9000 roof replacement cost
		require.True(t, adjustment.RepairCost.Equal(decimal.NewFromInt(9_000)))
		require.InDelta(t, 1-cfg.WornSystemSeverity, adjustment.Multiplier.InexactFloat64(), 1e-9)
	})

	t.Run("explicitly flagged systems are not double counted", func(t *testing.T) {
		assessment := &domain.ConditionAssessment{
			SystemRatings: map[domain.SystemName]int{
				domain.SystemRoof: 0,
			},
			Issues: []domain.FlaggedIssue{
				issue(domain.SystemRoof, 0.2, 8_000, 12_000),
			},
		}

		adjustment := svc.Adjust(assessment)

		require.Len(t, adjustment.Priorities, 1)
		require.InDelta(t, 0.8, adjustment.Multiplier.InexactFloat64(), 1e-9)
		require.True(t, adjustment.RepairCost.Equal(decimal.NewFromInt(10_000)))
	})

	t.Run("regional cost index scales the cost to cure", func(t *testing.T) {
		regional := internal.DefaultValuationConfig()
		regional.RegionalCostIndex = 1.2
		svc := NewConditionService(regional)

		assessment := &domain.ConditionAssessment{
			Issues: []domain.FlaggedIssue{
				issue(domain.SystemHVAC, 0.1, 4_000, 6_000),
			},
		}

		adjustment := svc.Adjust(assessment)

		require.True(t, adjustment.RepairCost.Equal(decimal.NewFromInt(6_000)))
		require.Equal(t, domain.PriorityUrgent, adjustment.Priorities[0].Priority)
	})
}

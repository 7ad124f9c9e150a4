package service

import (
	"context"
	"testing"

	"propval/internal"
	"propval/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func methodResult(method domain.MethodID, point float64, confidence float64, bandHalfWidth float64) domain.MethodResult {
	return domain.MethodResult{
		Method:        method,
		PointEstimate: decimal.NewFromFloat(point),
		BandLow:       decimal.NewFromFloat(point - bandHalfWidth),
		BandHigh:      decimal.NewFromFloat(point + bandHalfWidth),
		Confidence:    confidence,
	}
}

func neutralReconcileInput(results ...domain.MethodResult) ReconcileInput {
	return ReconcileInput{
		MethodResults: results,
		TotalMethods:  3,
		Trend: domain.TrendSignal{
			Classification: domain.TrendStable,
			Velocity:       0,
			Confidence:     1,
		},
		Condition: domain.ConditionAdjustment{
			Multiplier: decimal.NewFromInt(1),
			RepairCost: decimal.Zero,
		},
	}
}

func TestReconcile(t *testing.T) {
	cfg := internal.DefaultValuationConfig()
	svc := NewReconciliationService(cfg)
	ctx := context.Background()

	t.Run("agreeing methods blend without penalty", func(t *testing.T) {
		in := neutralReconcileInput(
			methodResult(domain.MethodPricePerArea, 300_000, 0.9, 5_000),
			methodResult(domain.MethodComparableSales, 305_000, 0.8, 5_000),
			methodResult(domain.MethodRegression, 310_000, 0.7, 5_000),
		)

		estimate, err := svc.Reconcile(ctx, in)
		require.NoError(t, err)

		require.InDelta(t, 304_583.33, estimate.PointValue.InexactFloat64(), 1)
		require.Zero(t, estimate.DisagreementPenalty)
		require.InDelta(t, 1.0, estimate.CoverageFactor, 1e-9)
		require.InDelta(t, 0.80833, estimate.Confidence, 1e-4)

		// range brackets the point and is no narrower than any method band
		require.True(t, estimate.RangeLow.LessThan(estimate.PointValue))
		require.True(t, estimate.RangeHigh.GreaterThan(estimate.PointValue))
		require.GreaterOrEqual(t,
			estimate.RangeHigh.Sub(estimate.RangeLow).InexactFloat64(),
			10_000.0,
		)

		// weights are proportional to confidence and sum to one
		require.InDelta(t, 0.375, estimate.MethodWeights[domain.MethodPricePerArea], 1e-6)
		total := 0.0
		for _, w := range estimate.MethodWeights {
			total += w
		}
		require.InDelta(t, 1.0, total, 1e-9)
	})

	t.Run("wide disagreement is penalized, not discarded", func(t *testing.T) {
		agreeing := neutralReconcileInput(
			methodResult(domain.MethodPricePerArea, 300_000, 0.8, 1_000),
			methodResult(domain.MethodComparableSales, 302_000, 0.8, 1_000),
		)
		disagreeing := neutralReconcileInput(
			methodResult(domain.MethodPricePerArea, 200_000, 0.8, 1_000),
			methodResult(domain.MethodComparableSales, 400_000, 0.8, 1_000),
		)

		agreed, err := svc.Reconcile(ctx, agreeing)
		require.NoError(t, err)
		disagreed, err := svc.Reconcile(ctx, disagreeing)
		require.NoError(t, err)

		require.Zero(t, agreed.DisagreementPenalty)
		// spread 2/3 on a 0.15 threshold: (0.667-0.15)/0.85
		require.InDelta(t, 0.6078, disagreed.DisagreementPenalty, 1e-3)
		require.Less(t, disagreed.Confidence, agreed.Confidence)
	})

	t.Run("penalty is capped at the configured maximum", func(t *testing.T) {
		in := neutralReconcileInput(
			methodResult(domain.MethodPricePerArea, 100_000, 0.8, 1_000),
			methodResult(domain.MethodComparableSales, 500_000, 0.8, 1_000),
		)

		estimate, err := svc.Reconcile(ctx, in)
		require.NoError(t, err)
		require.InDelta(t, cfg.MaxDisagreementPenalty, estimate.DisagreementPenalty, 1e-9)
	})

	t.Run("missing methods shrink the coverage factor and confidence", func(t *testing.T) {
		full := neutralReconcileInput(
			methodResult(domain.MethodPricePerArea, 300_000, 0.8, 5_000),
			methodResult(domain.MethodComparableSales, 300_000, 0.8, 5_000),
			methodResult(domain.MethodRegression, 300_000, 0.8, 5_000),
		)
		regressionOnly := neutralReconcileInput(
			methodResult(domain.MethodRegression, 300_000, 0.8, 5_000),
		)
		regressionOnly.MethodFailures = map[domain.MethodID]string{
			domain.MethodPricePerArea:    "subject has no recorded area",
			domain.MethodComparableSales: "2 comps, need 3",
		}

		fullEstimate, err := svc.Reconcile(ctx, full)
		require.NoError(t, err)
		partialEstimate, err := svc.Reconcile(ctx, regressionOnly)
		require.NoError(t, err)

		require.InDelta(t, 1.0/3, partialEstimate.CoverageFactor, 1e-9)
		require.Less(t, partialEstimate.Confidence, fullEstimate.Confidence)
		// the surviving method's estimate carries through unchanged
		require.InDelta(t, 300_000, partialEstimate.PointValue.InexactFloat64(), 1)
	})

	t.Run("trend scales the base by confidence-weighted velocity", func(t *testing.T) {
		in := neutralReconcileInput(
			methodResult(domain.MethodPricePerArea, 300_000, 0.8, 5_000),
			methodResult(domain.MethodComparableSales, 300_000, 0.8, 5_000),
			methodResult(domain.MethodRegression, 300_000, 0.8, 5_000),
		)
		in.Trend.Classification = domain.TrendRising
		in.Trend.Velocity = 0.02
		in.Trend.Confidence = 1

		estimate, err := svc.Reconcile(ctx, in)
		require.NoError(t, err)

		// 2%/period velocity halved by the base horizon weight
		require.InDelta(t, 1.01, estimate.TrendFactor, 1e-9)
		require.InDelta(t, 303_000, estimate.PointValue.InexactFloat64(), 1)
	})

	t.Run("low trend confidence shrinks the trend adjustment", func(t *testing.T) {
		in := neutralReconcileInput(
			methodResult(domain.MethodPricePerArea, 300_000, 0.8, 5_000),
		)
		in.Trend.Velocity = 0.02
		in.Trend.Confidence = 0.25

		estimate, err := svc.Reconcile(ctx, in)
		require.NoError(t, err)
		require.InDelta(t, 1.0025, estimate.TrendFactor, 1e-9)
	})

	t.Run("condition multiplier applies after trend", func(t *testing.T) {
		in := neutralReconcileInput(
			methodResult(domain.MethodPricePerArea, 300_000, 0.8, 5_000),
			methodResult(domain.MethodComparableSales, 300_000, 0.8, 5_000),
			methodResult(domain.MethodRegression, 300_000, 0.8, 5_000),
		)
		in.Condition = domain.ConditionAdjustment{
			Multiplier: decimal.NewFromFloat(0.5),
			RepairCost: decimal.NewFromInt(30_000),
		}

		estimate, err := svc.Reconcile(ctx, in)
		require.NoError(t, err)

		require.InDelta(t, 150_000, estimate.PointValue.InexactFloat64(), 1)
		// cost to cure reported separately, never folded into the point
		require.True(t, estimate.RepairCost.Equal(decimal.NewFromInt(30_000)))
	})

	t.Run("unassessed condition lowers confidence only", func(t *testing.T) {
		assessed := neutralReconcileInput(
			methodResult(domain.MethodPricePerArea, 300_000, 0.8, 5_000),
		)
		unassessed := neutralReconcileInput(
			methodResult(domain.MethodPricePerArea, 300_000, 0.8, 5_000),
		)
		unassessed.Condition = domain.NeutralCondition()

		assessedEstimate, err := svc.Reconcile(ctx, assessed)
		require.NoError(t, err)
		unassessedEstimate, err := svc.Reconcile(ctx, unassessed)
		require.NoError(t, err)

		require.True(t, assessedEstimate.PointValue.Equal(unassessedEstimate.PointValue))
		require.InDelta(t,
			assessedEstimate.Confidence*cfg.UnassessedConditionScale,
			unassessedEstimate.Confidence,
			1e-9,
		)
	})

	t.Run("no usable methods is a typed failure", func(t *testing.T) {
		in := neutralReconcileInput()
		in.MethodFailures = map[domain.MethodID]string{
			domain.MethodPricePerArea: "subject has no recorded area",
		}

		_, err := svc.Reconcile(ctx, in)

		noUsable, ok := err.(domain.NoUsableMethodError)
		require.True(t, ok)
		require.Contains(t, noUsable.Failures, domain.MethodPricePerArea)
	})

	t.Run("identical inputs reconcile identically", func(t *testing.T) {
		in := neutralReconcileInput(
			methodResult(domain.MethodPricePerArea, 300_000, 0.9, 5_000),
			methodResult(domain.MethodComparableSales, 320_000, 0.7, 8_000),
		)

		first, err := svc.Reconcile(ctx, in)
		require.NoError(t, err)
		second, err := svc.Reconcile(ctx, in)
		require.NoError(t, err)

		require.Empty(t, cmp.Diff(first, second))
	})
}

func TestDisagreementPenaltyExpression(t *testing.T) {
	ctx := context.Background()

	disagreeing := func() ReconcileInput {
		return neutralReconcileInput(
			methodResult(domain.MethodPricePerArea, 250_000, 0.8, 1_000),
			methodResult(domain.MethodComparableSales, 350_000, 0.8, 1_000),
		)
	}

	t.Run("custom curve overrides the linear default", func(t *testing.T) {
		cfg := internal.DefaultValuationConfig()
		cfg.DisagreementPenaltyExpr = "(spread - threshold) * 0.5"
		svc := NewReconciliationService(cfg)

		estimate, err := svc.Reconcile(ctx, disagreeing())
		require.NoError(t, err)

		// spread 100000/300000, threshold 0.15
		require.InDelta(t, (1.0/3-0.15)*0.5, estimate.DisagreementPenalty, 1e-6)
	})

	t.Run("broken expression falls back to the linear curve", func(t *testing.T) {
		cfg := internal.DefaultValuationConfig()
		cfg.DisagreementPenaltyExpr = "spread +* nonsense"
		svc := NewReconciliationService(cfg)

		estimate, err := svc.Reconcile(ctx, disagreeing())
		require.NoError(t, err)

		require.InDelta(t, (1.0/3-0.15)/0.85, estimate.DisagreementPenalty, 1e-6)
	})
}

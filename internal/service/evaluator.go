package service

import (
	"context"
	"math"

	"propval/internal"
	"propval/internal/domain"
)

// MethodEvaluator is one valuation methodology. Implementations are
// registered in a fixed order; the reconciliation engine only sees
// method id, point estimate, band and confidence, so new methodologies
// slot in without touching it.
type MethodEvaluator interface {
	Method() domain.MethodID
	Evaluate(ctx context.Context, comps domain.ComparableSet, subject domain.Property) (*domain.MethodResult, error)
}

// DefaultEvaluators returns the three strategies in their fixed
// registration order.
func DefaultEvaluators(cfg internal.ValuationConfig) []MethodEvaluator {
	return []MethodEvaluator{
		NewPricePerAreaEvaluator(cfg),
		NewComparableSalesEvaluator(cfg),
		NewRegressionEvaluator(cfg),
	}
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

// countFactor scales confidence by comp count against the configured
// target, capped at 1.
func countFactor(n, target int) float64 {
	if target <= 0 {
		return 1
	}
	return math.Min(1, float64(n)/float64(target))
}

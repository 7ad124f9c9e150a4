package service

import (
	"context"
	"fmt"
	"math"

	"propval/internal"
	"propval/internal/domain"

	"github.com/shopspring/decimal"
)

type comparableSalesEvaluator struct {
	cfg internal.ValuationConfig
}

func NewComparableSalesEvaluator(cfg internal.ValuationConfig) MethodEvaluator {
	return comparableSalesEvaluator{cfg: cfg}
}

func (e comparableSalesEvaluator) Method() domain.MethodID {
	return domain.MethodComparableSales
}

// Evaluate averages the adjusted comparable sale prices, weighted by
// similarity (normalized to sum 1). The band is one weighted standard
// deviation either side.
func (e comparableSalesEvaluator) Evaluate(ctx context.Context, comps domain.ComparableSet, subject domain.Property) (*domain.MethodResult, error) {
	if comps.Size() < e.cfg.MethodMinComparables {
		return nil, domain.MethodUnavailableError{
			Method: e.Method(),
			Reason: fmt.Sprintf("%d comps, need %d", comps.Size(), e.cfg.MethodMinComparables),
		}
	}

	totalSimilarity := 0.0
	for _, c := range comps.Comparables {
		totalSimilarity += c.Similarity
	}
	if totalSimilarity <= 0 {
		return nil, domain.MethodUnavailableError{
			Method: e.Method(),
			Reason: "all comps have zero similarity",
		}
	}

	weightedMean := 0.0
	for _, c := range comps.Comparables {
		weight := c.Similarity / totalSimilarity
		weightedMean += weight * c.AdjustedPrice.InexactFloat64()
	}

	weightedVariance := 0.0
	for _, c := range comps.Comparables {
		weight := c.Similarity / totalSimilarity
		diff := c.AdjustedPrice.InexactFloat64() - weightedMean
		weightedVariance += weight * diff * diff
	}
	weightedStd := math.Sqrt(weightedVariance)

	cv := 0.0
	if weightedMean > 0 {
		cv = weightedStd / weightedMean
	}
	confidence := countFactor(comps.Size(), e.cfg.ConfidenceTargetComps) * clamp01(1-cv)

	return &domain.MethodResult{
		Method:        e.Method(),
		PointEstimate: decimal.NewFromFloat(weightedMean).Round(2),
		BandLow:       decimal.NewFromFloat(weightedMean - weightedStd).Round(2),
		BandHigh:      decimal.NewFromFloat(weightedMean + weightedStd).Round(2),
		Confidence:    confidence,
	}, nil
}

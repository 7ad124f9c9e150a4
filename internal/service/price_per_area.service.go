package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"propval/internal"
	"propval/internal/domain"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
)

type pricePerAreaEvaluator struct {
	cfg internal.ValuationConfig
}

func NewPricePerAreaEvaluator(cfg internal.ValuationConfig) MethodEvaluator {
	return pricePerAreaEvaluator{cfg: cfg}
}

func (e pricePerAreaEvaluator) Method() domain.MethodID {
	return domain.MethodPricePerArea
}

// Evaluate prices the subject at the median adjusted $/area across the
// comparable set, with an age-depreciation discount. The uncertainty
// band spans the interquartile range of per-comp $/area.
func (e pricePerAreaEvaluator) Evaluate(ctx context.Context, comps domain.ComparableSet, subject domain.Property) (*domain.MethodResult, error) {
	if subject.Features.AreaSqft <= 0 {
		return nil, domain.MethodUnavailableError{
			Method: e.Method(),
			Reason: "subject has no recorded area",
		}
	}

	perArea := []float64{}
	for _, c := range comps.Comparables {
		if ppa, ok := c.AdjustedPricePerArea(); ok && ppa.IsPositive() {
			perArea = append(perArea, ppa.InexactFloat64())
		}
	}
	if len(perArea) < e.cfg.MethodMinComparables {
		return nil, domain.MethodUnavailableError{
			Method: e.Method(),
			Reason: fmt.Sprintf("%d comps with usable $/area, need %d", len(perArea), e.cfg.MethodMinComparables),
		}
	}

	median, err := stats.Median(perArea)
	if err != nil {
		return nil, fmt.Errorf("failed to compute median $/area: %w", err)
	}
	quartiles, err := stats.Quartile(perArea)
	if err != nil {
		return nil, fmt.Errorf("failed to compute $/area quartiles: %w", err)
	}

	depreciation := e.ageDepreciation(subject, time.Now().UTC())
	area := subject.Features.AreaSqft

	estimate := median * area * depreciation
	low := quartiles.Q1 * area * depreciation
	high := quartiles.Q3 * area * depreciation

	iqrRatio := 0.0
	if median > 0 {
		iqrRatio = (quartiles.Q3 - quartiles.Q1) / median
	}
	confidence := countFactor(len(perArea), e.cfg.ConfidenceTargetComps) * clamp01(1-iqrRatio)

	return &domain.MethodResult{
		Method:        e.Method(),
		PointEstimate: decimal.NewFromFloat(estimate).Round(2),
		BandLow:       decimal.NewFromFloat(low).Round(2),
		BandHigh:      decimal.NewFromFloat(high).Round(2),
		Confidence:    confidence,
	}, nil
}

func (e pricePerAreaEvaluator) ageDepreciation(subject domain.Property, asOf time.Time) float64 {
	age := float64(subject.AgeYears(asOf))
	return math.Max(e.cfg.AgeDepreciationFloor, 1-age*e.cfg.AgeDepreciationPerYear)
}

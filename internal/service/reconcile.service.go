package service

import (
	"context"
	"fmt"
	"math"

	"propval/internal"
	"propval/internal/domain"
	"propval/internal/logger"

	"github.com/maja42/goval"
	"github.com/shopspring/decimal"
)

type ReconcileInput struct {
	MethodResults  []domain.MethodResult
	MethodFailures map[domain.MethodID]string
	// TotalMethods is the configured method count, not just the ones
	// that succeeded; the coverage factor needs both.
	TotalMethods int
	Trend        domain.TrendSignal
	Condition    domain.ConditionAdjustment
}

type ReconciliationService interface {
	Reconcile(ctx context.Context, in ReconcileInput) (*domain.ValuationEstimate, error)
}

type reconciliationServiceHandler struct {
	Config internal.ValuationConfig
}

func NewReconciliationService(cfg internal.ValuationConfig) ReconciliationService {
	return reconciliationServiceHandler{Config: cfg}
}

// Reconcile combines the surviving method results with the trend signal
// and condition adjustment into one estimate. The ordering is
// load-bearing: weights, then disagreement, then trend, then condition.
// Condition and trend adjust an already-reconciled market value; they
// are not inputs to method disagreement.
func (h reconciliationServiceHandler) Reconcile(ctx context.Context, in ReconcileInput) (*domain.ValuationEstimate, error) {
	log := logger.FromContext(ctx)
	cfg := h.Config

	if len(in.MethodResults) == 0 {
		return nil, domain.NoUsableMethodError{Failures: in.MethodFailures}
	}

	// 1. normalize confidence weights across methods that succeeded
	weights := methodWeights(in.MethodResults)

	coverage := 1.0
	if in.TotalMethods > 0 {
		coverage = float64(len(in.MethodResults)) / float64(in.TotalMethods)
	}

	// 2. confidence-weighted base estimate
	base := 0.0
	weightedConfidence := 0.0
	minEstimate := math.Inf(1)
	maxEstimate := math.Inf(-1)
	for _, result := range in.MethodResults {
		estimate := result.PointEstimate.InexactFloat64()
		weight := weights[result.Method]
		base += weight * estimate
		weightedConfidence += weight * result.Confidence
		minEstimate = math.Min(minEstimate, estimate)
		maxEstimate = math.Max(maxEstimate, estimate)
	}
	if base <= 0 {
		return nil, fmt.Errorf("reconciled base estimate is non-positive: %f", base)
	}

	// 3. disagreement penalty - outliers carry information here, so
	// spread lowers confidence instead of discarding methods
	spread := (maxEstimate - minEstimate) / base
	penalty, err := h.disagreementPenalty(spread)
	if err != nil {
		log.Warnw("penalty expression failed, falling back to linear curve", "error", err)
		penalty = linearPenalty(spread, cfg.DisagreementThreshold)
	}
	penalty = math.Min(penalty, cfg.MaxDisagreementPenalty)

	// 4. trend adjustment, weight shrinking with trend confidence
	trendFactor := 1 + in.Trend.Velocity*cfg.BaseHorizonWeight*in.Trend.Confidence

	// 5. condition multiplier; repair cost stays its own line
	conditionMultiplier := in.Condition.Multiplier.InexactFloat64()
	pointValue := base * trendFactor * conditionMultiplier

	// 6. compose final confidence
	trendConfidenceFactor := 1 - cfg.TrendConfidenceWeight*(1-in.Trend.Confidence)
	completeness := 1.0
	if in.Condition.Unassessed {
		completeness = cfg.UnassessedConditionScale
	}
	confidence := clamp01(weightedConfidence * coverage * (1 - penalty) * trendConfidenceFactor * completeness)

	// 7. value range: confidence-inverse-scaled spread, never narrower
	// than any contributing method's own band
	halfWidth := (maxEstimate - minEstimate) / 2 * (2 - confidence)
	for _, result := range in.MethodResults {
		halfWidth = math.Max(halfWidth, result.BandHalfWidth().InexactFloat64())
	}

	return &domain.ValuationEstimate{
		PointValue:          decimal.NewFromFloat(pointValue).Round(2),
		RangeLow:            decimal.NewFromFloat(pointValue - halfWidth).Round(2),
		RangeHigh:           decimal.NewFromFloat(pointValue + halfWidth).Round(2),
		Confidence:          confidence,
		MethodWeights:       weights,
		TrendFactor:         trendFactor,
		ConditionMultiplier: in.Condition.Multiplier,
		RepairCost:          in.Condition.RepairCost,
		CoverageFactor:      coverage,
		DisagreementPenalty: penalty,
	}, nil
}

func methodWeights(results []domain.MethodResult) map[domain.MethodID]float64 {
	weights := map[domain.MethodID]float64{}
	totalConfidence := 0.0
	for _, result := range results {
		totalConfidence += result.Confidence
	}
	if totalConfidence <= 0 {
		equal := 1 / float64(len(results))
		for _, result := range results {
			weights[result.Method] = equal
		}
		return weights
	}
	for _, result := range results {
		weights[result.Method] = result.Confidence / totalConfidence
	}
	return weights
}

// disagreementPenalty evaluates the configured penalty curve, or the
// default linear-in-excess-spread curve when none is configured. The
// expression sees `spread` and `threshold` and must be monotonically
// non-decreasing in spread.
func (h reconciliationServiceHandler) disagreementPenalty(spread float64) (float64, error) {
	cfg := h.Config
	if spread <= cfg.DisagreementThreshold {
		return 0, nil
	}
	if cfg.DisagreementPenaltyExpr == "" {
		return linearPenalty(spread, cfg.DisagreementThreshold), nil
	}

	eval := goval.NewEvaluator()
	result, err := eval.Evaluate(cfg.DisagreementPenaltyExpr, map[string]interface{}{
		"spread":    spread,
		"threshold": cfg.DisagreementThreshold,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate penalty expression: %w", err)
	}

	switch v := result.(type) {
	case float64:
		return math.Max(0, v), nil
	case int:
		return math.Max(0, float64(v)), nil
	default:
		return 0, fmt.Errorf("penalty expression returned %T, expected a number", result)
	}
}

func linearPenalty(spread, threshold float64) float64 {
	if spread <= threshold {
		return 0
	}
	if threshold >= 1 {
		return 0
	}
	return clamp01((spread - threshold) / (1 - threshold))
}

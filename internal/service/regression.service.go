package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"propval/internal"
	"propval/internal/calculator"
	"propval/internal/domain"

	"github.com/shopspring/decimal"
)

type regressionEvaluator struct {
	cfg internal.ValuationConfig
}

func NewRegressionEvaluator(cfg internal.ValuationConfig) MethodEvaluator {
	return regressionEvaluator{cfg: cfg}
}

func (e regressionEvaluator) Method() domain.MethodID {
	return domain.MethodRegression
}

func regressionFeatures(f domain.StructuralFeatures, ageYears int) []float64 {
	return []float64{
		f.AreaSqft,
		float64(f.Bedrooms),
		float64(ageYears),
	}
}

// Evaluate fits adjusted sale price on structural features across the
// comparable set and predicts the subject. The band is the 95%
// prediction interval; confidence comes from fit quality capped by
// degrees of freedom, so small samples never look certain no matter how
// well they fit.
func (e regressionEvaluator) Evaluate(ctx context.Context, comps domain.ComparableSet, subject domain.Property) (*domain.MethodResult, error) {
	if comps.Size() < e.cfg.RegressionMinSamples {
		return nil, domain.MethodUnavailableError{
			Method: e.Method(),
			Reason: fmt.Sprintf("%d comps, regression needs %d", comps.Size(), e.cfg.RegressionMinSamples),
		}
	}

	asOf := time.Now().UTC()
	observations := make([]calculator.Observation, 0, comps.Size())
	for _, c := range comps.Comparables {
		observations = append(observations, calculator.Observation{
			Features: regressionFeatures(c.Property.Features, c.Property.AgeYears(asOf)),
			Target:   c.AdjustedPrice.InexactFloat64(),
		})
	}

	model, err := calculator.FitOLS(observations)
	if err != nil {
		// degenerate feature variance is a data precondition failure,
		// not a pipeline bug
		return nil, domain.MethodUnavailableError{
			Method: e.Method(),
			Reason: err.Error(),
		}
	}

	subjectFeatures := regressionFeatures(subject.Features, subject.AgeYears(asOf))
	predicted, err := model.Predict(subjectFeatures)
	if err != nil {
		return nil, fmt.Errorf("failed to predict subject value: %w", err)
	}
	if predicted <= 0 {
		return nil, domain.MethodUnavailableError{
			Method: e.Method(),
			Reason: fmt.Sprintf("model predicted non-positive value %.2f", predicted),
		}
	}

	stdErr, err := model.PredictionStdErr(subjectFeatures)
	if err != nil {
		return nil, fmt.Errorf("failed to compute prediction interval: %w", err)
	}
	halfWidth := 1.96 * stdErr

	dofCap := 1.0
	if e.cfg.RegressionDOFFloor > 0 {
		dofCap = math.Min(1, float64(model.DegreesOfFreedom)/e.cfg.RegressionDOFFloor)
	}
	confidence := clamp01(model.RSquared) * dofCap

	return &domain.MethodResult{
		Method:        e.Method(),
		PointEstimate: decimal.NewFromFloat(predicted).Round(2),
		BandLow:       decimal.NewFromFloat(predicted - halfWidth).Round(2),
		BandHigh:      decimal.NewFromFloat(predicted + halfWidth).Round(2),
		Confidence:    confidence,
	}, nil
}

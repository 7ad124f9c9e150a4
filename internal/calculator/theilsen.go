package calculator

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

type TheilSenFit struct {
	Slope     float64
	Intercept float64
	// ResidualDispersion is the stdev of residuals around the fitted
	// line, divided by the median of y. Dimensionless.
	ResidualDispersion float64
}

// TheilSen fits a robust line as the median of all pairwise slopes.
// Far less sensitive to outlier sales than least squares, which is the
// point of using it for market velocity.
func TheilSen(x, y []float64) (*TheilSenFit, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("x and y lengths differ: %d vs %d", len(x), len(y))
	}
	if len(x) < 2 {
		return nil, fmt.Errorf("cannot fit a slope on %d points", len(x))
	}

	slopes := []float64{}
	for i := 0; i < len(x); i++ {
		for j := i + 1; j < len(x); j++ {
			if x[j] == x[i] {
				continue
			}
			slopes = append(slopes, (y[j]-y[i])/(x[j]-x[i]))
		}
	}
	if len(slopes) == 0 {
		return nil, fmt.Errorf("all x values identical, slope undefined")
	}

	slope, err := stats.Median(slopes)
	if err != nil {
		return nil, err
	}

	intercepts := make([]float64, len(x))
	for i := range x {
		intercepts[i] = y[i] - slope*x[i]
	}
	intercept, err := stats.Median(intercepts)
	if err != nil {
		return nil, err
	}

	residuals := make([]float64, len(x))
	for i := range x {
		residuals[i] = y[i] - (intercept + slope*x[i])
	}
	residualStd, err := stats.StandardDeviationSample(residuals)
	if err != nil {
		return nil, err
	}
	medianY, err := stats.Median(y)
	if err != nil {
		return nil, err
	}

	dispersion := 0.0
	if medianY != 0 {
		dispersion = math.Abs(residualStd / medianY)
	}

	return &TheilSenFit{
		Slope:              slope,
		Intercept:          intercept,
		ResidualDispersion: dispersion,
	}, nil
}

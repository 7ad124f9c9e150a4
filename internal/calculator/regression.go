package calculator

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

type Observation struct {
	Features []float64
	Target   float64
}

// OLSModel is an ordinary least squares fit of target on features with
// an intercept term.
type OLSModel struct {
	// Coefficients[0] is the intercept.
	Coefficients []float64
	RSquared     float64
	ResidualStd  float64
	N            int
	// DegreesOfFreedom is n - k - 1.
	DegreesOfFreedom int

	xtxInverse [][]float64
}

// FitOLS solves the normal equations (X'X)b = X'y. Returns an error on
// degenerate inputs: too few observations for the feature count, or a
// feature with no variance (singular X'X).
func FitOLS(observations []Observation) (*OLSModel, error) {
	n := len(observations)
	if n == 0 {
		return nil, fmt.Errorf("cannot fit regression on 0 observations")
	}
	k := len(observations[0].Features)
	if k == 0 {
		return nil, fmt.Errorf("cannot fit regression with 0 features")
	}
	if n < k+2 {
		return nil, fmt.Errorf("cannot fit regression: %d observations for %d features", n, k)
	}

	p := k + 1
	x := make([][]float64, n)
	y := make([]float64, n)
	for i, obs := range observations {
		if len(obs.Features) != k {
			return nil, fmt.Errorf("observation %d has %d features, expected %d", i, len(obs.Features), k)
		}
		row := make([]float64, p)
		row[0] = 1
		copy(row[1:], obs.Features)
		x[i] = row
		y[i] = obs.Target
	}

	xtx := make([][]float64, p)
	xty := make([]float64, p)
	for i := 0; i < p; i++ {
		xtx[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			sum := 0.0
			for r := 0; r < n; r++ {
				sum += x[r][i] * x[r][j]
			}
			xtx[i][j] = sum
		}
		sum := 0.0
		for r := 0; r < n; r++ {
			sum += x[r][i] * y[r]
		}
		xty[i] = sum
	}

	inverse, err := invert(xtx)
	if err != nil {
		return nil, fmt.Errorf("degenerate feature matrix: %w", err)
	}

	coefficients := make([]float64, p)
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			coefficients[i] += inverse[i][j] * xty[j]
		}
	}

	meanY, err := stats.Mean(y)
	if err != nil {
		return nil, err
	}
	ssTotal, ssResidual := 0.0, 0.0
	for i := 0; i < n; i++ {
		predicted := 0.0
		for j := 0; j < p; j++ {
			predicted += coefficients[j] * x[i][j]
		}
		ssResidual += (y[i] - predicted) * (y[i] - predicted)
		ssTotal += (y[i] - meanY) * (y[i] - meanY)
	}

	rSquared := 0.0
	if ssTotal > 0 {
		rSquared = 1 - ssResidual/ssTotal
	}
	dof := n - p
	residualStd := 0.0
	if dof > 0 {
		residualStd = math.Sqrt(ssResidual / float64(dof))
	}

	return &OLSModel{
		Coefficients:     coefficients,
		RSquared:         rSquared,
		ResidualStd:      residualStd,
		N:                n,
		DegreesOfFreedom: dof,
		xtxInverse:       inverse,
	}, nil
}

func (m *OLSModel) Predict(features []float64) (float64, error) {
	if len(features) != len(m.Coefficients)-1 {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.Coefficients)-1, len(features))
	}
	predicted := m.Coefficients[0]
	for i, f := range features {
		predicted += m.Coefficients[i+1] * f
	}
	return predicted, nil
}

// PredictionStdErr is the standard error of a new prediction at the
// given point: s * sqrt(1 + x'(X'X)^-1 x), which accounts for leverage.
func (m *OLSModel) PredictionStdErr(features []float64) (float64, error) {
	p := len(m.Coefficients)
	if len(features) != p-1 {
		return 0, fmt.Errorf("expected %d features, got %d", p-1, len(features))
	}
	xRow := make([]float64, p)
	xRow[0] = 1
	copy(xRow[1:], features)

	leverage := 0.0
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			leverage += xRow[i] * m.xtxInverse[i][j] * xRow[j]
		}
	}
	return m.ResidualStd * math.Sqrt(1+leverage), nil
}

// invert computes the inverse via Gauss-Jordan elimination with partial
// pivoting. Errors on a singular matrix.
func invert(matrix [][]float64) ([][]float64, error) {
	n := len(matrix)
	augmented := make([][]float64, n)
	for i := 0; i < n; i++ {
		augmented[i] = make([]float64, 2*n)
		copy(augmented[i], matrix[i])
		augmented[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(augmented[row][col]) > math.Abs(augmented[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(augmented[pivot][col]) < 1e-10 {
			return nil, fmt.Errorf("matrix is singular at column %d", col)
		}
		augmented[col], augmented[pivot] = augmented[pivot], augmented[col]

		pivotValue := augmented[col][col]
		for j := 0; j < 2*n; j++ {
			augmented[col][j] /= pivotValue
		}
		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			factor := augmented[row][col]
			for j := 0; j < 2*n; j++ {
				augmented[row][j] -= factor * augmented[col][j]
			}
		}
	}

	inverse := make([][]float64, n)
	for i := 0; i < n; i++ {
		inverse[i] = augmented[i][n:]
	}
	return inverse, nil
}

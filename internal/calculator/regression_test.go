package calculator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFitOLS(t *testing.T) {
	t.Run("recovers exact linear relationship", func(t *testing.T) {
		// y = 10 + 2a + 3b
		observations := []Observation{
			{Features: []float64{1, 1}, Target: 15},
			{Features: []float64{2, 1}, Target: 17},
			{Features: []float64{3, 2}, Target: 22},
			{Features: []float64{4, 3}, Target: 27},
			{Features: []float64{5, 5}, Target: 35},
			{Features: []float64{6, 4}, Target: 34},
		}

		model, err := FitOLS(observations)
		require.NoError(t, err)

		require.InDelta(t, 10, model.Coefficients[0], 1e-6)
		require.InDelta(t, 2, model.Coefficients[1], 1e-6)
		require.InDelta(t, 3, model.Coefficients[2], 1e-6)
		require.InDelta(t, 1, model.RSquared, 1e-9)
		require.InDelta(t, 0, model.ResidualStd, 1e-6)

		predicted, err := model.Predict([]float64{10, 10})
		require.NoError(t, err)
		require.InDelta(t, 60, predicted, 1e-6)

		stdErr, err := model.PredictionStdErr([]float64{10, 10})
		require.NoError(t, err)
		require.InDelta(t, 0, stdErr, 1e-6)
	})

	t.Run("noisy fit has positive residual std and r2 below 1", func(t *testing.T) {
		observations := []Observation{
			{Features: []float64{1}, Target: 12},
			{Features: []float64{2}, Target: 13},
			{Features: []float64{3}, Target: 17},
			{Features: []float64{4}, Target: 17},
			{Features: []float64{5}, Target: 22},
		}

		model, err := FitOLS(observations)
		require.NoError(t, err)

		require.Greater(t, model.RSquared, 0.8)
		require.Less(t, model.RSquared, 1.0)
		require.Greater(t, model.ResidualStd, 0.0)
	})

	t.Run("fails on feature with no variance", func(t *testing.T) {
		observations := []Observation{
			{Features: []float64{1, 3}, Target: 10},
			{Features: []float64{2, 3}, Target: 12},
			{Features: []float64{3, 3}, Target: 14},
			{Features: []float64{4, 3}, Target: 16},
			{Features: []float64{5, 3}, Target: 18},
		}

		_, err := FitOLS(observations)
		require.Error(t, err)
		require.Contains(t, err.Error(), "degenerate")
	})

	t.Run("fails on too few observations", func(t *testing.T) {
		observations := []Observation{
			{Features: []float64{1, 2, 3}, Target: 10},
			{Features: []float64{2, 3, 4}, Target: 12},
		}

		_, err := FitOLS(observations)
		require.Error(t, err)
	})
}

func TestTheilSen(t *testing.T) {
	t.Run("exact line", func(t *testing.T) {
		x := []float64{0, 1, 2, 3, 4}
		y := []float64{1, 3, 5, 7, 9}

		fit, err := TheilSen(x, y)
		require.NoError(t, err)

		require.InDelta(t, 2, fit.Slope, 1e-9)
		require.InDelta(t, 1, fit.Intercept, 1e-9)
		require.InDelta(t, 0, fit.ResidualDispersion, 1e-9)
	})

	t.Run("robust to a single outlier sale", func(t *testing.T) {
		x := []float64{0, 1, 2, 3, 4, 5, 6}
		y := []float64{1, 3, 5, 7, 9, 11, 100}

		fit, err := TheilSen(x, y)
		require.NoError(t, err)

		// least squares would be dragged way above 2 here
		require.InDelta(t, 2, fit.Slope, 0.5)
	})

	t.Run("fails on fewer than two points", func(t *testing.T) {
		_, err := TheilSen([]float64{1}, []float64{1})
		require.Error(t, err)
	})
}

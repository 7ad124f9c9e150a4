package domain

import "time"

type TrendClassification string

const (
	TrendRising    TrendClassification = "RISING"
	TrendStable    TrendClassification = "STABLE"
	TrendDeclining TrendClassification = "DECLINING"
	TrendVolatile  TrendClassification = "VOLATILE"
)

// TrendSignal describes the market's trajectory over a window,
// independent of any single property.
type TrendSignal struct {
	Window Window `json:"window"`
	// Velocity is fractional price change per period, e.g. 0.02 = +2%.
	Velocity        float64             `json:"velocity"`
	InventoryLevel  float64             `json:"inventoryLevel"`
	AvgDaysOnMarket float64             `json:"avgDaysOnMarket"`
	Classification  TrendClassification `json:"classification"`
	// SeasonalIndex is the mean price index per calendar month across the
	// window, 1.0 = window average.
	SeasonalIndex map[time.Month]float64 `json:"seasonalIndex"`
	// ForecastFactors projects the compounding velocity out N periods.
	ForecastFactors map[int]float64 `json:"forecastFactors"`
	Confidence      float64         `json:"confidence"`
	// Degraded marks a signal built from sparse or missing data; it
	// defaults to STABLE and softens the estimate instead of blocking it.
	Degraded bool `json:"degraded"`
}

// NeutralTrend is the fallback when the market series is unusable.
func NeutralTrend(window Window, confidence float64) TrendSignal {
	return TrendSignal{
		Window:          window,
		Velocity:        0,
		Classification:  TrendStable,
		SeasonalIndex:   map[time.Month]float64{},
		ForecastFactors: map[int]float64{},
		Confidence:      confidence,
		Degraded:        true,
	}
}

package internal

import (
	"encoding/json"
	"fmt"
	"os"
)

// SimilarityWeights control how much each normalized feature delta
// counts against a candidate's similarity score.
type SimilarityWeights struct {
	Area      float64 `json:"area"`
	Age       float64 `json:"age"`
	Bedrooms  float64 `json:"bedrooms"`
	Bathrooms float64 `json:"bathrooms"`
	Distance  float64 `json:"distance"`
	Recency   float64 `json:"recency"`
}

func (w SimilarityWeights) Total() float64 {
	return w.Area + w.Age + w.Bedrooms + w.Bathrooms + w.Distance + w.Recency
}

// AdjustmentRates are the per-unit dollar amounts used to build
// adjustment vectors. PerArea of 0 means derive it from the candidate
// pool's observed $/area instead.
type AdjustmentRates struct {
	PerArea     float64 `json:"perArea"`
	PerBedroom  float64 `json:"perBedroom"`
	PerBathroom float64 `json:"perBathroom"`
	PerLotAcre  float64 `json:"perLotAcre"`
	PerYearAge  float64 `json:"perYearAge"`
}

// ValuationConfig carries every calibration knob in the pipeline. The
// formulas are fixed; the coefficients are not.
type ValuationConfig struct {
	// comparable selection
	SimilarityFloor    float64           `json:"similarityFloor"`
	MinComparables     int               `json:"minComparables"`
	MaxComparables     int               `json:"maxComparables"`
	Similarity         SimilarityWeights `json:"similarityWeights"`
	Adjustments        AdjustmentRates   `json:"adjustmentRates"`
	AreaScaleSqft      float64           `json:"areaScaleSqft"`
	AgeScaleYears      float64           `json:"ageScaleYears"`
	BedroomScale       float64           `json:"bedroomScale"`
	BathroomScale      float64           `json:"bathroomScale"`
	DistanceScaleMiles float64           `json:"distanceScaleMiles"`
	RecencyScaleDays   float64           `json:"recencyScaleDays"`
	// annual market appreciation used to index stale comp sales forward
	MarketAppreciationRate float64 `json:"marketAppreciationRate"`

	// method evaluators
	MethodMinComparables   int     `json:"methodMinComparables"`
	ConfidenceTargetComps  int     `json:"confidenceTargetComps"`
	AgeDepreciationPerYear float64 `json:"ageDepreciationPerYear"`
	AgeDepreciationFloor   float64 `json:"ageDepreciationFloor"`
	RegressionMinSamples   int     `json:"regressionMinSamples"`
	RegressionDOFFloor     float64 `json:"regressionDofFloor"`

	// trend
	TrendPeriodDays          int     `json:"trendPeriodDays"`
	TrendMinObservations     int     `json:"trendMinObservations"`
	TrendTargetObservations  int     `json:"trendTargetObservations"`
	TrendRisingThreshold     float64 `json:"trendRisingThreshold"`
	TrendDecliningThreshold  float64 `json:"trendDecliningThreshold"`
	TrendVolatilityThreshold float64 `json:"trendVolatilityThreshold"`
	TrendDegradedConfidence  float64 `json:"trendDegradedConfidence"`
	ForecastHorizons         []int   `json:"forecastHorizons"`

	// condition
	ConditionMultiplierFloor float64 `json:"conditionMultiplierFloor"`
	RegionalCostIndex        float64 `json:"regionalCostIndex"`
	UrgentCostThreshold      float64 `json:"urgentCostThreshold"`
	HighCostThreshold        float64 `json:"highCostThreshold"`
	// systems rated at or below the threshold (0-5 scale) with no
	// explicitly flagged issue derive one at replacement cost
	SystemRatingFlagThreshold int                `json:"systemRatingFlagThreshold"`
	WornSystemSeverity        float64            `json:"wornSystemSeverity"`
	SystemReplacementCosts    map[string]float64 `json:"systemReplacementCosts"`

	// reconciliation
	DisagreementThreshold    float64 `json:"disagreementThreshold"`
	MaxDisagreementPenalty   float64 `json:"maxDisagreementPenalty"`
	DisagreementPenaltyExpr  string  `json:"disagreementPenaltyExpr"`
	BaseHorizonWeight        float64 `json:"baseHorizonWeight"`
	TrendConfidenceWeight    float64 `json:"trendConfidenceWeight"`
	UnassessedConditionScale float64 `json:"unassessedConditionScale"`

	// orchestration
	EvaluatorTimeoutMS int `json:"evaluatorTimeoutMs"`
}

func DefaultValuationConfig() ValuationConfig {
	return ValuationConfig{
		SimilarityFloor: 0.5,
		MinComparables:  3,
		MaxComparables:  10,
		Similarity: SimilarityWeights{
			Area:      0.25,
			Age:       0.1,
			Bedrooms:  0.15,
			Bathrooms: 0.1,
			Distance:  0.25,
			Recency:   0.15,
		},
		Adjustments: AdjustmentRates{
			PerArea:     0, // derive from pool
			PerBedroom:  5000,
			PerBathroom: 10000,
			PerLotAcre:  20000,
			PerYearAge:  -500,
		},
		AreaScaleSqft:          1500,
		AgeScaleYears:          40,
		BedroomScale:           3,
		BathroomScale:          3,
		DistanceScaleMiles:     5,
		RecencyScaleDays:       365,
		MarketAppreciationRate: 0.02,

		MethodMinComparables:   3,
		ConfidenceTargetComps:  5,
		AgeDepreciationPerYear: 0.005,
		AgeDepreciationFloor:   0.85,
		RegressionMinSamples:   5,
		RegressionDOFFloor:     5,

		TrendPeriodDays:          30,
		TrendMinObservations:     6,
		TrendTargetObservations:  24,
		TrendRisingThreshold:     0.0025,
		TrendDecliningThreshold:  -0.0025,
		TrendVolatilityThreshold: 0.1,
		TrendDegradedConfidence:  0.25,
		ForecastHorizons:         []int{3, 6, 12},

		ConditionMultiplierFloor:  0.5,
		RegionalCostIndex:         1.0,
		UrgentCostThreshold:       5000,
		HighCostThreshold:         2000,
		SystemRatingFlagThreshold: 1,
		WornSystemSeverity:        0.05,
		SystemReplacementCosts: map[string]float64{
			"STRUCTURAL": 15000,
			"ELECTRICAL": 5000,
			"PLUMBING":   4000,
			"HVAC":       7000,
			"ROOF":       9000,
			"OTHER":      2000,
		},

		DisagreementThreshold:   0.15,
		MaxDisagreementPenalty:  0.75,
		DisagreementPenaltyExpr: "",
		BaseHorizonWeight:       0.5,
		TrendConfidenceWeight:   0.2,

		UnassessedConditionScale: 0.9,

		EvaluatorTimeoutMS: 0,
	}
}

func (c ValuationConfig) Valid() error {
	if c.SimilarityFloor < 0 || c.SimilarityFloor > 1 {
		return fmt.Errorf("similarity floor must be in [0,1], got %f", c.SimilarityFloor)
	}
	if c.MinComparables < 1 {
		return fmt.Errorf("min comparables must be >= 1, got %d", c.MinComparables)
	}
	if c.MaxComparables < c.MinComparables {
		return fmt.Errorf("max comparables %d below min %d", c.MaxComparables, c.MinComparables)
	}
	if c.Similarity.Total() <= 0 {
		return fmt.Errorf("similarity weights must sum to a positive value")
	}
	if c.ConditionMultiplierFloor < 0 || c.ConditionMultiplierFloor > 1 {
		return fmt.Errorf("condition multiplier floor must be in [0,1], got %f", c.ConditionMultiplierFloor)
	}
	if c.DisagreementThreshold <= 0 || c.DisagreementThreshold >= 1 {
		return fmt.Errorf("disagreement threshold must be in (0,1), got %f", c.DisagreementThreshold)
	}
	return nil
}

// LoadValuationConfig reads calibration overrides from a JSON file,
// starting from defaults.
func LoadValuationConfig(path string) (*ValuationConfig, error) {
	cfg := DefaultValuationConfig()
	if path == "" {
		return &cfg, nil
	}
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(bytes, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

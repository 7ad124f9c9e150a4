package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdjustmentVector maps a feature name to the signed dollar amount applied
// to normalize the comparable's sale price toward the subject.
type AdjustmentVector map[string]decimal.Decimal

func (v AdjustmentVector) Total() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range v {
		total = total.Add(amount)
	}
	return total
}

type Comparable struct {
	Property      Property         `json:"property"`
	Similarity    float64          `json:"similarity"`
	Adjustments   AdjustmentVector `json:"adjustments"`
	SalePrice     decimal.Decimal  `json:"salePrice"`
	AdjustedPrice decimal.Decimal  `json:"adjustedPrice"`
	DaysSinceSale int              `json:"daysSinceSale"`
	ExactMatch    bool             `json:"exactMatch"`
}

func (c Comparable) AdjustedPricePerArea() (decimal.Decimal, bool) {
	area := c.Property.Features.AreaSqft
	if area <= 0 {
		return decimal.Zero, false
	}
	return c.AdjustedPrice.Div(decimal.NewFromFloat(area)), true
}

type MarketStatistics struct {
	AvgPricePerArea  decimal.Decimal `json:"avgPricePerArea"`
	AvgDaysOnMarket  float64         `json:"avgDaysOnMarket"`
	MinAdjustedPrice decimal.Decimal `json:"minAdjustedPrice"`
	MedAdjustedPrice decimal.Decimal `json:"medAdjustedPrice"`
	MaxAdjustedPrice decimal.Decimal `json:"maxAdjustedPrice"`
}

// ComparableSet is read-only once built; the orchestrator shares it by
// reference across every concurrent evaluator in a run.
type ComparableSet struct {
	SubjectID   uuid.UUID        `json:"subjectId"`
	Comparables []Comparable     `json:"comparables"`
	Stats       MarketStatistics `json:"stats"`
}

func (s ComparableSet) Size() int {
	return len(s.Comparables)
}

func (s ComparableSet) AdjustedPrices() []decimal.Decimal {
	prices := make([]decimal.Decimal, 0, len(s.Comparables))
	for _, c := range s.Comparables {
		prices = append(prices, c.AdjustedPrice)
	}
	return prices
}

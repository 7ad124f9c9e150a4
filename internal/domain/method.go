package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type MethodID string

const (
	MethodPricePerArea    MethodID = "PRICE_PER_AREA"
	MethodComparableSales MethodID = "COMPARABLE_SALES"
	MethodRegression      MethodID = "REGRESSION"
)

func NewMethodID(s string) (*MethodID, error) {
	m := map[string]MethodID{
		"PRICE_PER_AREA":   MethodPricePerArea,
		"COMPARABLE_SALES": MethodComparableSales,
		"REGRESSION":       MethodRegression,
	}
	for k, v := range m {
		if strings.EqualFold(
			strings.ReplaceAll(k, "_", ""),
			strings.ReplaceAll(s, "_", ""),
		) {
			return &v, nil
		}
	}
	return nil, fmt.Errorf("could not convert '%s' to known valuation method", s)
}

// MethodResult is one evaluator's independent opinion. Produced once per
// run and frozen.
type MethodResult struct {
	Method        MethodID        `json:"method"`
	PointEstimate decimal.Decimal `json:"pointEstimate"`
	BandLow       decimal.Decimal `json:"bandLow"`
	BandHigh      decimal.Decimal `json:"bandHigh"`
	// Confidence reflects data sufficiency (comp count, fit quality),
	// not correctness.
	Confidence float64 `json:"confidence"`
}

func (r MethodResult) BandHalfWidth() decimal.Decimal {
	two := decimal.NewFromInt(2)
	return r.BandHigh.Sub(r.BandLow).Div(two)
}

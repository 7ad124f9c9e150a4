package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	AdminArea string  `json:"adminArea"`
}

type StructuralFeatures struct {
	AreaSqft     float64 `json:"areaSqft"`
	Bedrooms     int     `json:"bedrooms"`
	Bathrooms    float64 `json:"bathrooms"`
	YearBuilt    int     `json:"yearBuilt"`
	LotSizeAcres float64 `json:"lotSizeAcres"`
}

type SaleEvent struct {
	Date         time.Time       `json:"date"`
	Price        decimal.Decimal `json:"price"`
	DaysOnMarket int             `json:"daysOnMarket"`
}

// Property is immutable once ingested. Corrections come in as a new
// ingestion, never as an in-place edit.
type Property struct {
	ID          uuid.UUID          `json:"id"`
	Address     string             `json:"address"`
	Location    Location           `json:"location"`
	Features    StructuralFeatures `json:"features"`
	SaleHistory []SaleEvent        `json:"saleHistory"`
}

func (p Property) DeepCopy() Property {
	history := make([]SaleEvent, len(p.SaleHistory))
	copy(history, p.SaleHistory)
	out := p
	out.SaleHistory = history
	return out
}

// LatestSale returns the most recent sale event, if any. SaleHistory is
// not assumed to arrive sorted.
func (p Property) LatestSale() (SaleEvent, bool) {
	if len(p.SaleHistory) == 0 {
		return SaleEvent{}, false
	}
	sorted := make([]SaleEvent, len(p.SaleHistory))
	copy(sorted, p.SaleHistory)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	return sorted[0], true
}

func (p Property) AgeYears(asOf time.Time) int {
	age := asOf.Year() - p.Features.YearBuilt
	if age < 0 {
		return 0
	}
	return age
}

// Scope bounds which candidates and market observations are considered
// for a run.
type Scope struct {
	Center         Location `json:"center"`
	MaxRadiusMiles float64  `json:"maxRadiusMiles"`
	MaxSaleAgeDays int      `json:"maxSaleAgeDays"`
}

type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Periods(periodDays int) float64 {
	if periodDays <= 0 {
		return 0
	}
	return w.End.Sub(w.Start).Hours() / 24 / float64(periodDays)
}

// MarketObservation is one point of the market series collaborator's
// output: a dated, normalized price with liquidity context.
type MarketObservation struct {
	Date            time.Time `json:"date"`
	NormalizedPrice float64   `json:"normalizedPrice"`
	DaysOnMarket    float64   `json:"daysOnMarket"`
	InventoryCount  int       `json:"inventoryCount"`
}

package repository

import (
	"context"
	"fmt"
	"os"
	"time"

	"propval/internal/domain"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MarketDataRepository is the data-acquisition collaborator. The core
// assumes it is slow and partial and never assumes completeness.
type MarketDataRepository interface {
	FetchCandidates(ctx context.Context, scope domain.Scope) ([]domain.Property, error)
	FetchMarketSeries(ctx context.Context, scope domain.Scope, window domain.Window) ([]domain.MarketObservation, error)
}

const csvDateLayout = "2006-01-02"

// candidateRow is one sale event; rows sharing a property id build up
// that property's sale history.
type candidateRow struct {
	PropertyID   string  `csv:"property_id"`
	Address      string  `csv:"address"`
	Latitude     float64 `csv:"latitude"`
	Longitude    float64 `csv:"longitude"`
	AdminArea    string  `csv:"admin_area"`
	AreaSqft     float64 `csv:"area_sqft"`
	Bedrooms     int     `csv:"bedrooms"`
	Bathrooms    float64 `csv:"bathrooms"`
	YearBuilt    int     `csv:"year_built"`
	LotSizeAcres float64 `csv:"lot_size_acres"`
	SaleDate     string  `csv:"sale_date"`
	SalePrice    float64 `csv:"sale_price"`
	DaysOnMarket int     `csv:"days_on_market"`
}

type seriesRow struct {
	Date            string  `csv:"date"`
	NormalizedPrice float64 `csv:"normalized_price"`
	DaysOnMarket    float64 `csv:"days_on_market"`
	InventoryCount  int     `csv:"inventory_count"`
}

type csvMarketDataHandler struct {
	CandidatesPath string
	SeriesPath     string
}

// NewCSVMarketDataRepository reads candidates and market series from
// local CSV files. Filtering by scope/window still happens here so the
// adapter honors the same contract as a live source.
func NewCSVMarketDataRepository(candidatesPath, seriesPath string) MarketDataRepository {
	return csvMarketDataHandler{
		CandidatesPath: candidatesPath,
		SeriesPath:     seriesPath,
	}
}

func (h csvMarketDataHandler) FetchCandidates(ctx context.Context, scope domain.Scope) ([]domain.Property, error) {
	file, err := os.Open(h.CandidatesPath)
	if err != nil {
		return nil, domain.DataUnavailableError{Source: "candidates csv", Err: err}
	}
	defer file.Close()

	rows := []*candidateRow{}
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, domain.DataUnavailableError{Source: "candidates csv", Err: err}
	}

	byID := map[string]*domain.Property{}
	order := []string{}
	for _, row := range rows {
		saleDate, err := time.Parse(csvDateLayout, row.SaleDate)
		if err != nil {
			return nil, fmt.Errorf("bad sale date %q for property %s: %w", row.SaleDate, row.PropertyID, err)
		}
		sale := domain.SaleEvent{
			Date:         saleDate,
			Price:        decimal.NewFromFloat(row.SalePrice),
			DaysOnMarket: row.DaysOnMarket,
		}

		if existing, ok := byID[row.PropertyID]; ok {
			existing.SaleHistory = append(existing.SaleHistory, sale)
			continue
		}

		id, err := uuid.Parse(row.PropertyID)
		if err != nil {
			// deterministic id for sources that key by address
			id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(row.PropertyID))
		}
		property := &domain.Property{
			ID:      id,
			Address: row.Address,
			Location: domain.Location{
				Latitude:  row.Latitude,
				Longitude: row.Longitude,
				AdminArea: row.AdminArea,
			},
			Features: domain.StructuralFeatures{
				AreaSqft:     row.AreaSqft,
				Bedrooms:     row.Bedrooms,
				Bathrooms:    row.Bathrooms,
				YearBuilt:    row.YearBuilt,
				LotSizeAcres: row.LotSizeAcres,
			},
			SaleHistory: []domain.SaleEvent{sale},
		}
		byID[row.PropertyID] = property
		order = append(order, row.PropertyID)
	}

	candidates := make([]domain.Property, 0, len(order))
	for _, key := range order {
		candidates = append(candidates, *byID[key])
	}
	return candidates, nil
}

func (h csvMarketDataHandler) FetchMarketSeries(ctx context.Context, scope domain.Scope, window domain.Window) ([]domain.MarketObservation, error) {
	file, err := os.Open(h.SeriesPath)
	if err != nil {
		return nil, domain.DataUnavailableError{Source: "market series csv", Err: err}
	}
	defer file.Close()

	rows := []*seriesRow{}
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, domain.DataUnavailableError{Source: "market series csv", Err: err}
	}

	observations := []domain.MarketObservation{}
	for _, row := range rows {
		date, err := time.Parse(csvDateLayout, row.Date)
		if err != nil {
			return nil, fmt.Errorf("bad series date %q: %w", row.Date, err)
		}
		if date.Before(window.Start) || date.After(window.End) {
			continue
		}
		observations = append(observations, domain.MarketObservation{
			Date:            date,
			NormalizedPrice: row.NormalizedPrice,
			DaysOnMarket:    row.DaysOnMarket,
			InventoryCount:  row.InventoryCount,
		})
	}
	return observations, nil
}

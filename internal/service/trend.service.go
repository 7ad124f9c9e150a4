package service

import (
	"context"
	"sort"
	"time"

	"propval/internal"
	"propval/internal/calculator"
	"propval/internal/domain"
	"propval/internal/logger"
	"propval/internal/repository"

	"github.com/montanaflynn/stats"
)

type TrendService interface {
	ComputeTrend(ctx context.Context, scope domain.Scope, window domain.Window) (*domain.TrendSignal, error)
}

type trendServiceHandler struct {
	MarketData repository.MarketDataRepository
	Config     internal.ValuationConfig
}

func NewTrendService(marketData repository.MarketDataRepository, cfg internal.ValuationConfig) TrendService {
	return trendServiceHandler{
		MarketData: marketData,
		Config:     cfg,
	}
}

// ComputeTrend fits a Theil-Sen line to normalized prices over the
// window and classifies the slope against configured bands. It never
// fails hard: sparse or missing data degrades to a neutral STABLE
// signal with low confidence, because trend absence should soften an
// estimate, not block it.
func (h trendServiceHandler) ComputeTrend(ctx context.Context, scope domain.Scope, window domain.Window) (*domain.TrendSignal, error) {
	log := logger.FromContext(ctx)
	cfg := h.Config

	observations, err := h.MarketData.FetchMarketSeries(ctx, scope, window)
	if err != nil {
		log.Warnw("market series unavailable, degrading trend to neutral", "error", err)
		signal := domain.NeutralTrend(window, cfg.TrendDegradedConfidence)
		return &signal, nil
	}
	if len(observations) < cfg.TrendMinObservations {
		log.Warnw("sparse market series, degrading trend to neutral",
			"observations", len(observations),
			"minimum", cfg.TrendMinObservations,
		)
		signal := domain.NeutralTrend(window, cfg.TrendDegradedConfidence)
		return &signal, nil
	}

	sorted := make([]domain.MarketObservation, len(observations))
	copy(sorted, observations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	x := make([]float64, len(sorted))
	y := make([]float64, len(sorted))
	dom := make([]float64, len(sorted))
	inventory := make([]float64, len(sorted))
	for i, obs := range sorted {
		x[i] = obs.Date.Sub(window.Start).Hours() / 24 / float64(cfg.TrendPeriodDays)
		y[i] = obs.NormalizedPrice
		dom[i] = obs.DaysOnMarket
		inventory[i] = float64(obs.InventoryCount)
	}

	fit, err := calculator.TheilSen(x, y)
	if err != nil {
		log.Warnw("could not fit trend line, degrading to neutral", "error", err)
		signal := domain.NeutralTrend(window, cfg.TrendDegradedConfidence)
		return &signal, nil
	}

	medianPrice, err := stats.Median(y)
	if err != nil || medianPrice <= 0 {
		signal := domain.NeutralTrend(window, cfg.TrendDegradedConfidence)
		return &signal, nil
	}
	velocity := fit.Slope / medianPrice

	classification := classifyTrend(velocity, fit.ResidualDispersion, cfg)

	avgDOM, _ := stats.Mean(dom)
	avgInventory, _ := stats.Mean(inventory)

	confidence := countFactor(len(sorted), cfg.TrendTargetObservations) *
		clamp01(1-fit.ResidualDispersion/cfg.TrendVolatilityThreshold)

	forecast := map[int]float64{}
	for _, horizon := range cfg.ForecastHorizons {
		forecast[horizon] = 1 + velocity*float64(horizon)
	}

	return &domain.TrendSignal{
		Window:          window,
		Velocity:        velocity,
		InventoryLevel:  avgInventory,
		AvgDaysOnMarket: avgDOM,
		Classification:  classification,
		SeasonalIndex:   seasonalIndex(sorted),
		ForecastFactors: forecast,
		Confidence:      confidence,
		Degraded:        false,
	}, nil
}

// volatile wins regardless of slope sign when residual dispersion is
// above threshold.
func classifyTrend(velocity, dispersion float64, cfg internal.ValuationConfig) domain.TrendClassification {
	if dispersion > cfg.TrendVolatilityThreshold {
		return domain.TrendVolatile
	}
	if velocity > cfg.TrendRisingThreshold {
		return domain.TrendRising
	}
	if velocity < cfg.TrendDecliningThreshold {
		return domain.TrendDeclining
	}
	return domain.TrendStable
}

// seasonalIndex averages the price index per calendar month, where 1.0
// is the window-wide mean price.
func seasonalIndex(observations []domain.MarketObservation) map[time.Month]float64 {
	prices := make([]float64, len(observations))
	for i, obs := range observations {
		prices[i] = obs.NormalizedPrice
	}
	mean, err := stats.Mean(prices)
	if err != nil || mean <= 0 {
		return map[time.Month]float64{}
	}

	byMonth := map[time.Month][]float64{}
	for _, obs := range observations {
		month := obs.Date.Month()
		byMonth[month] = append(byMonth[month], obs.NormalizedPrice/mean)
	}

	index := map[time.Month]float64{}
	for month, values := range byMonth {
		avg, err := stats.Mean(values)
		if err != nil {
			continue
		}
		index[month] = avg
	}
	return index
}

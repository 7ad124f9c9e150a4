package internal

import (
	"math"
	"sort"
	"time"

	"propval/internal/domain"

	"github.com/golang/geo/s2"
	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
)

const earthRadiusMiles = 3958.8

func MilesBetween(a, b domain.Location) float64 {
	p1 := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	p2 := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return p1.Distance(p2).Radians() * earthRadiusMiles
}

// candidateScore is the scored form of a candidate before ranking.
type candidateScore struct {
	property      domain.Property
	sale          domain.SaleEvent
	similarity    float64
	daysSinceSale int
	distanceMiles float64
	exactMatch    bool
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

// featureDeltas returns normalized per-feature differences in [0,1].
// An exact match is a candidate whose structural feature vector is
// identical to the subject's.
func featureDeltas(subject, candidate domain.Property, cfg ValuationConfig, distanceMiles float64, daysSinceSale int, asOf time.Time) (map[string]float64, bool) {
	sf, cf := subject.Features, candidate.Features
	deltas := map[string]float64{
		"area":      clamp01(math.Abs(sf.AreaSqft-cf.AreaSqft) / cfg.AreaScaleSqft),
		"age":       clamp01(math.Abs(float64(subject.AgeYears(asOf)-candidate.AgeYears(asOf))) / cfg.AgeScaleYears),
		"bedrooms":  clamp01(math.Abs(float64(sf.Bedrooms-cf.Bedrooms)) / cfg.BedroomScale),
		"bathrooms": clamp01(math.Abs(sf.Bathrooms-cf.Bathrooms) / cfg.BathroomScale),
		"distance":  clamp01(distanceMiles / cfg.DistanceScaleMiles),
		"recency":   clamp01(float64(daysSinceSale) / cfg.RecencyScaleDays),
	}

	exact := sf.AreaSqft == cf.AreaSqft &&
		sf.Bedrooms == cf.Bedrooms &&
		sf.Bathrooms == cf.Bathrooms &&
		sf.YearBuilt == cf.YearBuilt &&
		sf.LotSizeAcres == cf.LotSizeAcres

	return deltas, exact
}

func similarityScore(deltas map[string]float64, w SimilarityWeights) float64 {
	total := w.Total()
	if total <= 0 {
		return 0
	}
	weighted := w.Area*deltas["area"] +
		w.Age*deltas["age"] +
		w.Bedrooms*deltas["bedrooms"] +
		w.Bathrooms*deltas["bathrooms"] +
		w.Distance*deltas["distance"] +
		w.Recency*deltas["recency"]
	return clamp01(1 - weighted/total)
}

// SelectComparables filters and ranks candidates into a comparable set
// for the subject. Pure with respect to its inputs: the data
// collaborator supplies candidates, this only scores them.
func SelectComparables(
	subject domain.Property,
	candidates []domain.Property,
	scope domain.Scope,
	cfg ValuationConfig,
	asOf time.Time,
) (*domain.ComparableSet, error) {
	scored := []candidateScore{}
	for _, candidate := range candidates {
		if candidate.ID == subject.ID {
			continue
		}
		sale, ok := candidate.LatestSale()
		if !ok || !sale.Price.IsPositive() {
			continue
		}
		daysSinceSale := int(asOf.Sub(sale.Date).Hours() / 24)
		if daysSinceSale < 0 || (scope.MaxSaleAgeDays > 0 && daysSinceSale > scope.MaxSaleAgeDays) {
			continue
		}
		distance := MilesBetween(subject.Location, candidate.Location)
		if scope.MaxRadiusMiles > 0 && distance > scope.MaxRadiusMiles {
			continue
		}

		deltas, exact := featureDeltas(subject, candidate, cfg, distance, daysSinceSale, asOf)
		similarity := similarityScore(deltas, cfg.Similarity)
		if similarity < cfg.SimilarityFloor {
			continue
		}
		scored = append(scored, candidateScore{
			property:      candidate,
			sale:          sale,
			similarity:    similarity,
			daysSinceSale: daysSinceSale,
			distanceMiles: distance,
			exactMatch:    exact,
		})
	}

	if len(scored) < cfg.MinComparables {
		return nil, domain.InsufficientComparablesError{
			Found:   len(scored),
			Minimum: cfg.MinComparables,
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].similarity > scored[j].similarity
	})
	if len(scored) > cfg.MaxComparables {
		scored = scored[:cfg.MaxComparables]
	}

	perAreaRate := cfg.Adjustments.PerArea
	if perAreaRate <= 0 {
		perAreaRate = observedPricePerArea(scored)
	}

	comparables := make([]domain.Comparable, 0, len(scored))
	for _, s := range scored {
		adjustments := adjustmentVector(subject, s, cfg, perAreaRate, asOf)
		adjusted := s.sale.Price.Add(adjustments.Total())
		comparables = append(comparables, domain.Comparable{
			Property:      s.property,
			Similarity:    s.similarity,
			Adjustments:   adjustments,
			SalePrice:     s.sale.Price,
			AdjustedPrice: adjusted,
			DaysSinceSale: s.daysSinceSale,
			ExactMatch:    s.exactMatch,
		})
	}

	set := &domain.ComparableSet{
		SubjectID:   subject.ID,
		Comparables: comparables,
	}
	set.Stats = computeMarketStatistics(comparables)
	return set, nil
}

// adjustmentVector regresses out feature deltas against the subject:
// each entry is the signed dollar amount that normalizes the comparable
// toward the subject. Exact matches bypass adjustment entirely, except
// for sale-recency price indexing which applies market appreciation over
// the days since the comp sold.
func adjustmentVector(subject domain.Property, s candidateScore, cfg ValuationConfig, perAreaRate float64, asOf time.Time) domain.AdjustmentVector {
	v := domain.AdjustmentVector{}

	recencyFactor := math.Pow(1+cfg.MarketAppreciationRate, float64(s.daysSinceSale)/365)
	recencyAdj := s.sale.Price.InexactFloat64() * (recencyFactor - 1)
	if recencyAdj != 0 {
		v["recency"] = decimal.NewFromFloat(recencyAdj).Round(2)
	}

	if s.exactMatch {
		return v
	}

	sf, cf := subject.Features, s.property.Features
	entries := map[string]float64{
		"area":      (sf.AreaSqft - cf.AreaSqft) * perAreaRate,
		"bedrooms":  float64(sf.Bedrooms-cf.Bedrooms) * cfg.Adjustments.PerBedroom,
		"bathrooms": (sf.Bathrooms - cf.Bathrooms) * cfg.Adjustments.PerBathroom,
		"lotSize":   (sf.LotSizeAcres - cf.LotSizeAcres) * cfg.Adjustments.PerLotAcre,
		"age":       float64(subject.AgeYears(asOf)-s.property.AgeYears(asOf)) * cfg.Adjustments.PerYearAge,
	}
	for feature, amount := range entries {
		if amount != 0 {
			v[feature] = decimal.NewFromFloat(amount).Round(2)
		}
	}
	return v
}

func observedPricePerArea(scored []candidateScore) float64 {
	perArea := []float64{}
	for _, s := range scored {
		if s.property.Features.AreaSqft > 0 {
			perArea = append(perArea, s.sale.Price.InexactFloat64()/s.property.Features.AreaSqft)
		}
	}
	if len(perArea) == 0 {
		return 0
	}
	median, err := stats.Median(perArea)
	if err != nil {
		return 0
	}
	return median
}

func computeMarketStatistics(comparables []domain.Comparable) domain.MarketStatistics {
	prices := []float64{}
	perArea := []float64{}
	dom := []float64{}
	for _, c := range comparables {
		prices = append(prices, c.AdjustedPrice.InexactFloat64())
		if ppa, ok := c.AdjustedPricePerArea(); ok {
			perArea = append(perArea, ppa.InexactFloat64())
		}
		if sale, ok := c.Property.LatestSale(); ok {
			dom = append(dom, float64(sale.DaysOnMarket))
		}
	}

	out := domain.MarketStatistics{}
	if len(prices) == 0 {
		return out
	}

	min, _ := stats.Min(prices)
	max, _ := stats.Max(prices)
	med, _ := stats.Median(prices)
	out.MinAdjustedPrice = decimal.NewFromFloat(min).Round(2)
	out.MaxAdjustedPrice = decimal.NewFromFloat(max).Round(2)
	out.MedAdjustedPrice = decimal.NewFromFloat(med).Round(2)

	if len(perArea) > 0 {
		mean, _ := stats.Mean(perArea)
		out.AvgPricePerArea = decimal.NewFromFloat(mean).Round(2)
	}
	if len(dom) > 0 {
		out.AvgDaysOnMarket, _ = stats.Mean(dom)
	}
	return out
}

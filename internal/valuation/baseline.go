package valuation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"poke-platform/internal/config"
	"poke-platform/internal/storage"
)

// StrategyBaselineSpread is the registry name of the trailing mean baseline.
const StrategyBaselineSpread = "baseline_spread"

func init() {
	Register(StrategyBaselineSpread, func(cfg config.StrategyConfig) (Strategy, error) {
		return NewBaselineSpread(cfg), nil
	})
}

// BaselineSpread forecasts with the plain trailing mean of the lookback
// window. It exists as a sanity baseline next to the smoothing strategy, so
// its records carry a lower confidence.
type BaselineSpread struct {
	selector       VariantSelector
	lookbackDays   int
	minMarketPrice float64
	version        string
}

// NewBaselineSpread builds the strategy from configuration.
func NewBaselineSpread(cfg config.StrategyConfig) *BaselineSpread {
	return &BaselineSpread{
		selector:       VariantSelector{Preference: cfg.VariantPreference},
		lookbackDays:   cfg.LookbackDays,
		minMarketPrice: cfg.MinMarketPrice,
		version:        versionOrDefault(cfg.Version),
	}
}

func (s *BaselineSpread) Name() string { return StrategyBaselineSpread }

func (s *BaselineSpread) Version() string { return s.version }

type baselineRationale struct {
	Method        string `json:"method"`
	Variant       string `json:"variant"`
	LookbackDays  int    `json:"lookback_days"`
	PricePoints   int    `json:"price_points"`
	LastPriceDate string `json:"last_price_date"`
}

// ComputeCandidates evaluates every asset using the same eligibility rules as
// the smoothing strategy but forecasts with the trailing mean.
func (s *BaselineSpread) ComputeCandidates(history storage.AssetHistory, runDate time.Time, runID uuid.UUID) []storage.ValuationRecord {
	records := make([]storage.ValuationRecord, 0, len(history))
	for _, assetID := range sortedAssetIDs(history) {
		variant, series, ok := eligibleSeries(s.selector, history[assetID], runDate, s.minMarketPrice)
		if !ok {
			continue
		}

		prices := make([]float64, len(series))
		for i, point := range series {
			prices[i] = point.Price
		}
		forecast, err := stats.Mean(prices)
		if err != nil {
			continue
		}

		last := series[len(series)-1]
		gap := forecast - last.Price
		rationale, _ := json.Marshal(baselineRationale{
			Method:        "trailing_mean",
			Variant:       variant,
			LookbackDays:  s.lookbackDays,
			PricePoints:   len(series),
			LastPriceDate: last.Date.Format("2006-01-02"),
		})

		records = append(records, storage.ValuationRecord{
			ValDate:         storage.DateOf(runDate),
			AssetID:         assetID,
			StrategyName:    s.Name(),
			StrategyVersion: s.version,
			MarketPrice:     last.Price,
			SmoothPrice:     forecast,
			ForecastPrice:   forecast,
			Gap:             gap,
			GapPct:          gap / last.Price,
			Confidence:      0.5,
			Rationale:       rationale,
			RunID:           runID,
		})
	}
	return records
}

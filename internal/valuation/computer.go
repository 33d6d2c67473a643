package valuation

import (
	"encoding/json"
	"time"

	"poke-platform/internal/storage"
)

// Rationale is the explainability payload persisted with each valuation and
// surfaced to the reviewing human.
type Rationale struct {
	Alpha         float64 `json:"alpha"`
	Variant       string  `json:"variant"`
	LookbackDays  int     `json:"lookback_days"`
	PricePoints   int     `json:"price_points"`
	LastPriceDate string  `json:"last_price_date"`
}

// Computer derives one valuation candidate per asset by selecting a variant
// series and smoothing it.
type Computer struct {
	Selector       VariantSelector
	Alpha          float64
	LookbackDays   int
	MinMarketPrice float64
}

// Compute returns the valuation candidate for one asset. ok is false when the
// asset must be skipped: no variant series, no observation on the run date,
// or a last price at or below the configured floor. Skips are routine, not
// errors.
func (c Computer) Compute(assetID string, variants storage.VariantHistory, runDate time.Time) (storage.ValuationRecord, bool) {
	variant, series, ok := eligibleSeries(c.Selector, variants, runDate, c.MinMarketPrice)
	if !ok {
		return storage.ValuationRecord{}, false
	}

	smoothed, market := Smooth(series, c.Alpha)
	forecast := smoothed
	gap := forecast - market
	gapPct := gap / market

	rationale, _ := json.Marshal(Rationale{
		Alpha:         c.Alpha,
		Variant:       variant,
		LookbackDays:  c.LookbackDays,
		PricePoints:   len(series),
		LastPriceDate: series[len(series)-1].Date.Format("2006-01-02"),
	})

	return storage.ValuationRecord{
		ValDate:       storage.DateOf(runDate),
		AssetID:       assetID,
		MarketPrice:   market,
		SmoothPrice:   smoothed,
		ForecastPrice: forecast,
		Gap:           gap,
		GapPct:        gapPct,
		Confidence:    1.0,
		Rationale:     rationale,
	}, true
}

// eligibleSeries applies the shared eligibility rules: a variant series must
// be chosen, its last observation must fall on the run date, and the last
// price must clear the floor. Division by market price downstream is safe
// because the floor keeps it positive.
func eligibleSeries(selector VariantSelector, variants storage.VariantHistory, runDate time.Time, minMarketPrice float64) (string, []storage.PricePoint, bool) {
	variant, series, ok := selector.Select(variants, runDate)
	if !ok || len(series) == 0 {
		return "", nil, false
	}

	last := series[len(series)-1]
	if !storage.SameDate(last.Date, runDate) {
		return "", nil, false
	}
	if last.Price <= minMarketPrice {
		return "", nil, false
	}

	return variant, series, true
}

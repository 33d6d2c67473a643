package valuation

import "poke-platform/internal/storage"

// Smooth applies single exponential smoothing over a date-ordered price
// series. The level seeds from the first observation, then folds
// s = alpha*price + (1-alpha)*s across the remaining points in order.
// It returns the final level and the last raw price. An empty series
// yields (0, 0).
func Smooth(series []storage.PricePoint, alpha float64) (smoothed, lastRaw float64) {
	if len(series) == 0 {
		return 0, 0
	}

	smoothed = series[0].Price
	for _, point := range series[1:] {
		smoothed = alpha*point.Price + (1-alpha)*smoothed
	}
	return smoothed, series[len(series)-1].Price
}

// SmoothSeries returns the running smoothed level at every observation,
// seeded and folded exactly like Smooth. Used for charting the level next to
// the raw series.
func SmoothSeries(series []storage.PricePoint, alpha float64) []float64 {
	if len(series) == 0 {
		return nil
	}

	levels := make([]float64, len(series))
	levels[0] = series[0].Price
	for i := 1; i < len(series); i++ {
		levels[i] = alpha*series[i].Price + (1-alpha)*levels[i-1]
	}
	return levels
}

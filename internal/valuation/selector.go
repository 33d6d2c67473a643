package valuation

import (
	"time"

	"poke-platform/internal/storage"
)

// VariantSelector picks exactly one canonical price series per asset from its
// per-variant series. Cards print in several variants with independent and
// often sparse feeds; the selector keeps the choice deterministic, preferring
// liquid variants in a fixed order.
type VariantSelector struct {
	Preference []string
}

// Select returns the first preferred variant with an observation dated
// exactly targetDate. When none matches by date it falls back to the first
// preferred variant holding any observations at all. ok is false when no
// preferred variant has observations.
//
// Duplicate same-day rows within a series are not deduplicated here; upstream
// ingestion keys snapshots by (date, asset, variant) so duplicates cannot
// persist. If they appear in-memory the smoother processes them in the order
// given.
func (s VariantSelector) Select(variants storage.VariantHistory, targetDate time.Time) (string, []storage.PricePoint, bool) {
	for _, name := range s.Preference {
		for _, point := range variants[name] {
			if storage.SameDate(point.Date, targetDate) {
				return name, variants[name], true
			}
		}
	}

	for _, name := range s.Preference {
		if series := variants[name]; len(series) > 0 {
			return name, series, true
		}
	}

	return "", nil, false
}

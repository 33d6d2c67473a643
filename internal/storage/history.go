package storage

import (
	"context"
	"fmt"
	"time"
)

const (
	fetchEligibleHistorySQL = `SELECT
        t.snapshot_date,
        t.asset_id,
        t.variant,
        t.market
    FROM tcgplayer_price_snapshot t
    JOIN tracked_asset ta ON ta.asset_id = t.asset_id
    WHERE ta.is_active
      AND ($1 = '' OR (ta.tags->>'rarity') ILIKE $1)
      AND t.snapshot_date >= $2
      AND t.snapshot_date <= $3
      AND t.market IS NOT NULL
      AND t.market > $4
      AND t.variant = ANY($5)
    ORDER BY t.asset_id, t.variant, t.snapshot_date;`

	assetPriceHistorySQL = `SELECT
        snapshot_date,
        variant,
        market
    FROM tcgplayer_price_snapshot
    WHERE asset_id = $1
      AND snapshot_date >= $2
      AND market IS NOT NULL
    ORDER BY variant, snapshot_date;`
)

// HistorySource provides read access to eligible daily price observations.
type HistorySource interface {
	FetchEligibleHistory(ctx context.Context, filter HistoryFilter) (AssetHistory, error)
}

// PriceReader serves per-asset price history for charts and the API.
type PriceReader interface {
	AssetPriceHistory(ctx context.Context, assetID string, since time.Time) (VariantHistory, error)
}

// FetchEligibleHistory loads price history for active tracked assets within
// the filter window, grouped by asset and variant in ascending date order.
func (s *Store) FetchEligibleHistory(ctx context.Context, filter HistoryFilter) (AssetHistory, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, fetchEligibleHistorySQL,
		filter.RarityFilter,
		DateOf(filter.Start),
		DateOf(filter.End),
		filter.MinMarketPrice,
		filter.Variants,
	)
	if queryErr != nil {
		return nil, fmt.Errorf("fetch eligible history: %w", queryErr)
	}
	defer rows.Close()

	history := make(AssetHistory)
	for rows.Next() {
		var point PricePoint
		if scanErr := rows.Scan(&point.Date, &point.AssetID, &point.Variant, &point.Price); scanErr != nil {
			return nil, fmt.Errorf("scan price point: %w", scanErr)
		}
		point.Date = DateOf(point.Date)

		variants, ok := history[point.AssetID]
		if !ok {
			variants = make(VariantHistory)
			history[point.AssetID] = variants
		}
		variants[point.Variant] = append(variants[point.Variant], point)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return history, nil
}

// AssetPriceHistory loads all variant series for one asset since a date.
func (s *Store) AssetPriceHistory(ctx context.Context, assetID string, since time.Time) (VariantHistory, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, assetPriceHistorySQL, assetID, DateOf(since))
	if queryErr != nil {
		return nil, fmt.Errorf("asset price history: %w", queryErr)
	}
	defer rows.Close()

	variants := make(VariantHistory)
	for rows.Next() {
		point := PricePoint{AssetID: assetID}
		if scanErr := rows.Scan(&point.Date, &point.Variant, &point.Price); scanErr != nil {
			return nil, fmt.Errorf("scan price point: %w", scanErr)
		}
		point.Date = DateOf(point.Date)
		variants[point.Variant] = append(variants[point.Variant], point)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return variants, nil
}

var _ HistorySource = (*Store)(nil)
var _ PriceReader = (*Store)(nil)

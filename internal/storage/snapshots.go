package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	upsertTCGSnapshotSQL = `INSERT INTO tcgplayer_price_snapshot (
        snapshot_date,
        snapshot_ts,
        asset_id,
        variant,
        currency,
        market,
        low,
        mid,
        high,
        direct_low,
        url,
        source_updated_at,
        extra
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
    )
    ON CONFLICT (snapshot_date, asset_id, variant) DO UPDATE
    SET
        snapshot_ts       = EXCLUDED.snapshot_ts,
        currency          = EXCLUDED.currency,
        market            = EXCLUDED.market,
        low               = EXCLUDED.low,
        mid               = EXCLUDED.mid,
        high              = EXCLUDED.high,
        direct_low        = EXCLUDED.direct_low,
        url               = EXCLUDED.url,
        source_updated_at = EXCLUDED.source_updated_at,
        extra             = EXCLUDED.extra;`

	upsertCardmarketSnapshotSQL = `INSERT INTO cardmarket_price_snapshot (
        snapshot_date,
        snapshot_ts,
        asset_id,
        variant,
        currency,
        avg1,
        avg7,
        avg30,
        low_price,
        trend_price,
        extra
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    )
    ON CONFLICT (snapshot_date, asset_id, variant) DO UPDATE
    SET
        snapshot_ts = EXCLUDED.snapshot_ts,
        currency    = EXCLUDED.currency,
        avg1        = EXCLUDED.avg1,
        avg7        = EXCLUDED.avg7,
        avg30       = EXCLUDED.avg30,
        low_price   = EXCLUDED.low_price,
        trend_price = EXCLUDED.trend_price,
        extra       = EXCLUDED.extra;`
)

// SnapshotStore persists per-variant daily price snapshots.
type SnapshotStore interface {
	UpsertTCGSnapshots(ctx context.Context, snapshots []TCGPriceSnapshot) (int, error)
	UpsertCardmarketSnapshots(ctx context.Context, snapshots []CardmarketSnapshot) (int, error)
}

// UpsertTCGSnapshots writes TCGplayer snapshot rows in one batch.
func (s *Store) UpsertTCGSnapshots(ctx context.Context, snapshots []TCGPriceSnapshot) (int, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}

	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		var updatedAt interface{}
		if snap.SourceUpdatedAt != nil {
			updatedAt = DateOf(*snap.SourceUpdatedAt)
		}
		batch.Queue(upsertTCGSnapshotSQL,
			DateOf(snap.SnapshotDate),
			snap.SnapshotTS,
			snap.AssetID,
			snap.Variant,
			snap.Currency,
			decimalArg(snap.Market),
			decimalArg(snap.Low),
			decimalArg(snap.Mid),
			decimalArg(snap.High),
			decimalArg(snap.DirectLow),
			snap.URL,
			updatedAt,
			snap.Extra,
		)
	}

	results := pool.SendBatch(ctx, batch)
	for range snapshots {
		if _, execErr := results.Exec(); execErr != nil {
			_ = results.Close()
			return 0, fmt.Errorf("upsert tcgplayer snapshot: %w", execErr)
		}
	}
	if closeErr := results.Close(); closeErr != nil {
		return 0, fmt.Errorf("close tcgplayer batch: %w", closeErr)
	}
	return len(snapshots), nil
}

// UpsertCardmarketSnapshots writes Cardmarket snapshot rows in one batch.
func (s *Store) UpsertCardmarketSnapshots(ctx context.Context, snapshots []CardmarketSnapshot) (int, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}

	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(upsertCardmarketSnapshotSQL,
			DateOf(snap.SnapshotDate),
			snap.SnapshotTS,
			snap.AssetID,
			snap.Variant,
			snap.Currency,
			decimalArg(snap.Avg1),
			decimalArg(snap.Avg7),
			decimalArg(snap.Avg30),
			decimalArg(snap.LowPrice),
			decimalArg(snap.TrendPrice),
			snap.Extra,
		)
	}

	results := pool.SendBatch(ctx, batch)
	for range snapshots {
		if _, execErr := results.Exec(); execErr != nil {
			_ = results.Close()
			return 0, fmt.Errorf("upsert cardmarket snapshot: %w", execErr)
		}
	}
	if closeErr := results.Close(); closeErr != nil {
		return 0, fmt.Errorf("close cardmarket batch: %w", closeErr)
	}
	return len(snapshots), nil
}

// decimalArg renders an optional decimal as a NUMERIC parameter, keeping
// NULL for absent prices.
func decimalArg(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

var _ SnapshotStore = (*Store)(nil)

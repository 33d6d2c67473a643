package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const (
	upsertCardSQL = `INSERT INTO card_metadata (
        asset_id,
        snapshot_date,
        ptcg_card_id,
        name,
        set_id,
        set_name,
        set_release_date,
        number,
        rarity,
        artist,
        images_json,
        raw_json
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
    )
    ON CONFLICT (asset_id, snapshot_date) DO UPDATE
    SET
        ptcg_card_id     = EXCLUDED.ptcg_card_id,
        name             = EXCLUDED.name,
        set_id           = EXCLUDED.set_id,
        set_name         = EXCLUDED.set_name,
        set_release_date = EXCLUDED.set_release_date,
        number           = EXCLUDED.number,
        rarity           = EXCLUDED.rarity,
        artist           = EXCLUDED.artist,
        images_json      = EXCLUDED.images_json,
        raw_json         = EXCLUDED.raw_json;`

	activeCardDocsSQL = `SELECT DISTINCT ON (cm.asset_id)
        cm.asset_id,
        cm.raw_json
    FROM card_metadata cm
    JOIN tracked_asset ta ON ta.asset_id = cm.asset_id
    WHERE ta.is_active
      AND cm.raw_json IS NOT NULL
    ORDER BY cm.asset_id, cm.snapshot_date DESC;`

	trackByRaritySQL = `INSERT INTO tracked_asset (asset_id, is_active, tags)
    SELECT asset_id, TRUE, jsonb_build_object('rarity', rarity)
    FROM (
        SELECT DISTINCT ON (asset_id) asset_id, rarity
        FROM card_metadata
        ORDER BY asset_id, snapshot_date DESC
    ) latest
    WHERE rarity ILIKE $1
    ON CONFLICT (asset_id) DO UPDATE
    SET is_active = TRUE,
        tags      = EXCLUDED.tags;`

	setTrackedSQL = `INSERT INTO tracked_asset (asset_id, is_active)
    SELECT unnest($1::text[]), $2
    ON CONFLICT (asset_id) DO UPDATE
    SET is_active = EXCLUDED.is_active;`

	listTrackedSQL = `SELECT
        asset_id,
        is_active,
        tags,
        ts_added
    FROM tracked_asset
    ORDER BY asset_id
    LIMIT $1;`
)

// CardStore persists card metadata snapshots and serves raw card documents.
type CardStore interface {
	UpsertCards(ctx context.Context, cards []CardMetadata) (int, error)
	ActiveCardDocs(ctx context.Context) ([]CardDoc, error)
}

// TrackedStore manages the curated set of assets the pipeline follows.
type TrackedStore interface {
	TrackByRarity(ctx context.Context, pattern string) (int64, error)
	SetTracked(ctx context.Context, assetIDs []string, active bool) (int64, error)
	ListTracked(ctx context.Context, limit int) ([]TrackedAsset, error)
}

// UpsertCards writes card metadata rows in one batch.
func (s *Store) UpsertCards(ctx context.Context, cards []CardMetadata) (int, error) {
	if len(cards) == 0 {
		return 0, nil
	}

	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, card := range cards {
		var releaseDate interface{}
		if card.SetReleaseDate != nil {
			releaseDate = DateOf(*card.SetReleaseDate)
		}
		batch.Queue(upsertCardSQL,
			card.AssetID,
			DateOf(card.SnapshotDate),
			card.PTCGCardID,
			card.Name,
			card.SetID,
			card.SetName,
			releaseDate,
			card.Number,
			card.Rarity,
			card.Artist,
			card.ImagesJSON,
			card.RawJSON,
		)
	}

	results := pool.SendBatch(ctx, batch)
	for range cards {
		if _, execErr := results.Exec(); execErr != nil {
			_ = results.Close()
			return 0, fmt.Errorf("upsert card metadata: %w", execErr)
		}
	}
	if closeErr := results.Close(); closeErr != nil {
		return 0, fmt.Errorf("close card batch: %w", closeErr)
	}
	return len(cards), nil
}

// ActiveCardDocs returns the latest raw card document per active tracked asset.
func (s *Store) ActiveCardDocs(ctx context.Context) ([]CardDoc, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, activeCardDocsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list active card docs: %w", queryErr)
	}
	defer rows.Close()

	docs := make([]CardDoc, 0)
	for rows.Next() {
		var doc CardDoc
		if scanErr := rows.Scan(&doc.AssetID, &doc.Raw); scanErr != nil {
			return nil, fmt.Errorf("scan card doc: %w", scanErr)
		}
		docs = append(docs, doc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return docs, nil
}

// TrackByRarity activates every asset whose latest metadata matches the
// rarity pattern, recording the rarity in the asset's tags.
func (s *Store) TrackByRarity(ctx context.Context, pattern string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	cmdTag, execErr := pool.Exec(ctx, trackByRaritySQL, pattern)
	if execErr != nil {
		return 0, fmt.Errorf("track assets by rarity: %w", execErr)
	}
	return cmdTag.RowsAffected(), nil
}

// SetTracked activates or deactivates the given assets.
func (s *Store) SetTracked(ctx context.Context, assetIDs []string, active bool) (int64, error) {
	if len(assetIDs) == 0 {
		return 0, nil
	}

	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	cmdTag, execErr := pool.Exec(ctx, setTrackedSQL, assetIDs, active)
	if execErr != nil {
		return 0, fmt.Errorf("set tracked assets: %w", execErr)
	}
	return cmdTag.RowsAffected(), nil
}

// ListTracked lists curated assets ordered by id.
func (s *Store) ListTracked(ctx context.Context, limit int) ([]TrackedAsset, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listTrackedSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list tracked assets: %w", queryErr)
	}
	defer rows.Close()

	assets := make([]TrackedAsset, 0, limit)
	for rows.Next() {
		var asset TrackedAsset
		if scanErr := rows.Scan(&asset.AssetID, &asset.IsActive, &asset.Tags, &asset.TSAdded); scanErr != nil {
			return nil, fmt.Errorf("scan tracked asset: %w", scanErr)
		}
		assets = append(assets, asset)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return assets, nil
}

var _ CardStore = (*Store)(nil)
var _ TrackedStore = (*Store)(nil)

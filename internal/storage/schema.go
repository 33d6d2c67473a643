package storage

import (
	"context"
	"fmt"
)

// schemaStatements create every platform table when absent. Statements are
// idempotent so EnsureSchema is safe to call on every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS card_metadata (
        asset_id         TEXT NOT NULL,
        snapshot_date    DATE NOT NULL,
        ptcg_card_id     TEXT NOT NULL,
        name             TEXT,
        set_id           TEXT,
        set_name         TEXT,
        set_release_date DATE,
        number           TEXT,
        rarity           TEXT,
        artist           TEXT,
        images_json      JSONB,
        raw_json         JSONB,
        ts_created       TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (asset_id, snapshot_date)
    );`,

	`CREATE TABLE IF NOT EXISTS tracked_asset (
        asset_id  TEXT PRIMARY KEY,
        is_active BOOLEAN NOT NULL DEFAULT TRUE,
        tags      JSONB NOT NULL DEFAULT '{}'::jsonb,
        ts_added  TIMESTAMPTZ NOT NULL DEFAULT now()
    );`,

	`CREATE TABLE IF NOT EXISTS tcgplayer_price_snapshot (
        snapshot_date     DATE NOT NULL,
        snapshot_ts       TIMESTAMPTZ NOT NULL,
        asset_id          TEXT NOT NULL,
        variant           TEXT NOT NULL,
        currency          TEXT NOT NULL DEFAULT 'USD',
        market            NUMERIC,
        low               NUMERIC,
        mid               NUMERIC,
        high              NUMERIC,
        direct_low        NUMERIC,
        url               TEXT,
        source_updated_at DATE,
        extra             JSONB,
        PRIMARY KEY (snapshot_date, asset_id, variant)
    );`,

	`CREATE TABLE IF NOT EXISTS cardmarket_price_snapshot (
        snapshot_date DATE NOT NULL,
        snapshot_ts   TIMESTAMPTZ NOT NULL,
        asset_id      TEXT NOT NULL,
        variant       TEXT NOT NULL DEFAULT 'default',
        currency      TEXT NOT NULL DEFAULT 'EUR',
        avg1          NUMERIC,
        avg7          NUMERIC,
        avg30         NUMERIC,
        low_price     NUMERIC,
        trend_price   NUMERIC,
        extra         JSONB,
        PRIMARY KEY (snapshot_date, asset_id, variant)
    );`,

	`CREATE TABLE IF NOT EXISTS valuation_daily (
        val_date         DATE NOT NULL,
        asset_id         TEXT NOT NULL,
        market_price     NUMERIC,
        smooth_price     NUMERIC,
        forecast_price   NUMERIC,
        gap              NUMERIC,
        gap_pct          NUMERIC,
        confidence       NUMERIC NOT NULL DEFAULT 1.0,
        rationale_json   JSONB,
        strategy_name    TEXT NOT NULL,
        strategy_version TEXT NOT NULL,
        run_id           UUID,
        ts_created       TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (val_date, asset_id, strategy_name, strategy_version)
    );`,

	`CREATE INDEX IF NOT EXISTS idx_valuation_daily_gap
        ON valuation_daily (val_date, gap_pct);`,

	`CREATE TABLE IF NOT EXISTS valuation_run (
        run_id           UUID PRIMARY KEY,
        run_date         DATE NOT NULL,
        strategy_name    TEXT NOT NULL,
        strategy_version TEXT NOT NULL,
        started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
        inserted_count   INTEGER NOT NULL DEFAULT 0,
        note             TEXT,
        UNIQUE (run_date, strategy_name, strategy_version)
    );`,

	`CREATE TABLE IF NOT EXISTS trade_proposal (
        proposal_id     UUID PRIMARY KEY,
        proposal_date   DATE NOT NULL,
        ts_created      TIMESTAMPTZ NOT NULL DEFAULT now(),
        action          TEXT NOT NULL,
        asset_id        TEXT NOT NULL,
        qty             INTEGER NOT NULL DEFAULT 1,
        target_price    NUMERIC,
        confidence      NUMERIC,
        rationale_json  JSONB,
        status          TEXT NOT NULL DEFAULT 'PENDING',
        decision        TEXT,
        decision_reason TEXT,
        decided_ts      TIMESTAMPTZ
    );`,

	`CREATE INDEX IF NOT EXISTS idx_trade_proposal_date
        ON trade_proposal (proposal_date);`,

	`CREATE TABLE IF NOT EXISTS holding (
        asset_id   TEXT PRIMARY KEY,
        qty        INTEGER NOT NULL,
        avg_cost   NUMERIC NOT NULL,
        ts_updated TIMESTAMPTZ NOT NULL DEFAULT now()
    );`,
}

// EnsureSchema creates any missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, stmt := range schemaStatements {
		if _, execErr := pool.Exec(ctx, stmt); execErr != nil {
			return fmt.Errorf("ensure schema: %w", execErr)
		}
	}
	return nil
}

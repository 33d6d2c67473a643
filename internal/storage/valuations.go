package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	upsertValuationSQL = `INSERT INTO valuation_daily (
        val_date,
        asset_id,
        market_price,
        smooth_price,
        forecast_price,
        gap,
        gap_pct,
        confidence,
        rationale_json,
        strategy_name,
        strategy_version,
        run_id,
        ts_created
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now()
    )
    ON CONFLICT (val_date, asset_id, strategy_name, strategy_version) DO UPDATE
    SET
        market_price   = EXCLUDED.market_price,
        smooth_price   = EXCLUDED.smooth_price,
        forecast_price = EXCLUDED.forecast_price,
        gap            = EXCLUDED.gap,
        gap_pct        = EXCLUDED.gap_pct,
        confidence     = EXCLUDED.confidence,
        rationale_json = EXCLUDED.rationale_json,
        run_id         = EXCLUDED.run_id,
        ts_created     = now();`

	insertRunSQL = `INSERT INTO valuation_run (
        run_id,
        run_date,
        strategy_name,
        strategy_version,
        started_at,
        inserted_count,
        note
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    );`

	runExistsSQL = `SELECT EXISTS (
        SELECT 1 FROM valuation_run
        WHERE run_date = $1
          AND strategy_name = $2
          AND strategy_version = $3
    );`

	listRecentRunsSQL = `SELECT
        run_id,
        run_date,
        strategy_name,
        strategy_version,
        started_at,
        inserted_count,
        COALESCE(note, '')
    FROM valuation_run
    ORDER BY started_at DESC
    LIMIT $1;`

	topValuationsSelect = `WITH latest AS (
        SELECT MAX(val_date) AS val_date
        FROM valuation_daily
        WHERE strategy_name = $1
          AND strategy_version = $2
    ), latest_card AS (
        SELECT DISTINCT ON (asset_id)
            asset_id, name, set_name, rarity, artist
        FROM card_metadata
        ORDER BY asset_id, snapshot_date DESC
    )
    SELECT
        v.val_date,
        v.asset_id,
        COALESCE(c.name, ''),
        COALESCE(c.set_name, ''),
        COALESCE(c.rarity, ''),
        COALESCE(c.artist, ''),
        v.market_price,
        v.smooth_price,
        v.forecast_price,
        v.gap,
        v.gap_pct,
        v.confidence,
        v.strategy_name,
        v.strategy_version,
        v.run_id
    FROM valuation_daily v
    JOIN latest ON v.val_date = latest.val_date
    LEFT JOIN latest_card c ON c.asset_id = v.asset_id
    WHERE v.strategy_name = $1
      AND v.strategy_version = $2
    ORDER BY v.gap_pct `

	topUndervaluedSQL = topValuationsSelect + `DESC LIMIT $3;`
	topOvervaluedSQL  = topValuationsSelect + `ASC LIMIT $3;`
)

// Gap ranking directions accepted by TopValuations.
const (
	DirectionUndervalued = "undervalued"
	DirectionOvervalued  = "overvalued"
)

// ValuationRunStore persists valuation runs atomically.
type ValuationRunStore interface {
	RunExists(ctx context.Context, runDate time.Time, strategyName, strategyVersion string) (bool, error)
	CommitRun(ctx context.Context, records []ValuationRecord, run RunRecord) error
}

// ValuationReader serves ranked valuations to the API layer.
type ValuationReader interface {
	TopValuations(ctx context.Context, direction string, strategyName, strategyVersion string, limit int) ([]ValuationView, error)
}

// RunReader lists run audit rows.
type RunReader interface {
	ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// RunExists reports whether a run record exists for the given day and strategy.
func (s *Store) RunExists(ctx context.Context, runDate time.Time, strategyName, strategyVersion string) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	var exists bool
	if scanErr := pool.QueryRow(ctx, runExistsSQL, DateOf(runDate), strategyName, strategyVersion).Scan(&exists); scanErr != nil {
		return false, fmt.Errorf("check run exists: %w", scanErr)
	}
	return exists, nil
}

// CommitRun upserts all valuation records and writes the run audit row in one
// transaction. The run row is written last so a failure at any earlier point
// leaves the day eligible for a clean retry. A unique violation on the run row
// is reported as ErrRunExists and rolls back the whole batch.
func (s *Store) CommitRun(ctx context.Context, records []ValuationRecord, run RunRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin run transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if len(records) > 0 {
		batch := &pgx.Batch{}
		for _, rec := range records {
			batch.Queue(upsertValuationSQL,
				DateOf(rec.ValDate),
				rec.AssetID,
				rec.MarketPrice,
				rec.SmoothPrice,
				rec.ForecastPrice,
				rec.Gap,
				rec.GapPct,
				rec.Confidence,
				rec.Rationale,
				rec.StrategyName,
				rec.StrategyVersion,
				rec.RunID,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for range records {
			if _, execErr := results.Exec(); execErr != nil {
				_ = results.Close()
				return fmt.Errorf("upsert valuation: %w", execErr)
			}
		}
		if closeErr := results.Close(); closeErr != nil {
			return fmt.Errorf("close valuation batch: %w", closeErr)
		}
	}

	var note interface{}
	if run.Note != "" {
		note = run.Note
	}

	if _, execErr := tx.Exec(ctx, insertRunSQL,
		run.RunID,
		DateOf(run.RunDate),
		run.StrategyName,
		run.StrategyVersion,
		run.StartedAt,
		run.InsertedCount,
		note,
	); execErr != nil {
		if isUniqueViolation(execErr) {
			return ErrRunExists
		}
		return fmt.Errorf("insert run record: %w", execErr)
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		if isUniqueViolation(commitErr) {
			return ErrRunExists
		}
		return fmt.Errorf("commit run transaction: %w", commitErr)
	}
	return nil
}

// TopValuations returns the highest-gap valuations for the latest run date of
// a strategy, joined with the most recent card metadata.
func (s *Store) TopValuations(ctx context.Context, direction string, strategyName, strategyVersion string, limit int) ([]ValuationView, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var query string
	switch direction {
	case DirectionUndervalued:
		query = topUndervaluedSQL
	case DirectionOvervalued:
		query = topOvervaluedSQL
	default:
		return nil, fmt.Errorf("unknown gap direction %q", direction)
	}

	rows, queryErr := pool.Query(ctx, query, strategyName, strategyVersion, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list top valuations: %w", queryErr)
	}
	defer rows.Close()

	views := make([]ValuationView, 0, limit)
	for rows.Next() {
		var view ValuationView
		if scanErr := rows.Scan(
			&view.ValDate,
			&view.AssetID,
			&view.Name,
			&view.SetName,
			&view.Rarity,
			&view.Artist,
			&view.MarketPrice,
			&view.SmoothPrice,
			&view.ForecastPrice,
			&view.Gap,
			&view.GapPct,
			&view.Confidence,
			&view.StrategyName,
			&view.StrategyVersion,
			&view.RunID,
		); scanErr != nil {
			return nil, fmt.Errorf("scan valuation view: %w", scanErr)
		}
		view.ValDate = DateOf(view.ValDate)
		views = append(views, view)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return views, nil
}

// ListRecentRuns lists run audit rows ordered by most recent start.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0, limit)
	for rows.Next() {
		var run RunRecord
		if scanErr := rows.Scan(
			&run.RunID,
			&run.RunDate,
			&run.StrategyName,
			&run.StrategyVersion,
			&run.StartedAt,
			&run.InsertedCount,
			&run.Note,
		); scanErr != nil {
			return nil, fmt.Errorf("scan run record: %w", scanErr)
		}
		run.RunDate = DateOf(run.RunDate)
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

var _ ValuationRunStore = (*Store)(nil)
var _ ValuationReader = (*Store)(nil)
var _ RunReader = (*Store)(nil)

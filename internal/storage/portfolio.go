package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	upsertHoldingSQL = `INSERT INTO holding (
        asset_id,
        qty,
        avg_cost,
        ts_updated
    ) VALUES (
        $1,$2,$3,now()
    )
    ON CONFLICT (asset_id) DO UPDATE
    SET qty        = EXCLUDED.qty,
        avg_cost   = EXCLUDED.avg_cost,
        ts_updated = now();`

	listHoldingsSQL = `SELECT
        asset_id,
        qty,
        avg_cost,
        ts_updated
    FROM holding
    ORDER BY asset_id;`

	portfolioValuationsSQL = `WITH latest AS (
        SELECT MAX(val_date) AS val_date
        FROM valuation_daily
        WHERE strategy_name = $1
          AND strategy_version = $2
    ), latest_card AS (
        SELECT DISTINCT ON (asset_id) asset_id, name
        FROM card_metadata
        ORDER BY asset_id, snapshot_date DESC
    )
    SELECT
        h.asset_id,
        COALESCE(c.name, ''),
        h.qty,
        h.avg_cost,
        v.val_date,
        v.market_price,
        v.forecast_price,
        v.gap_pct,
        v.confidence
    FROM holding h
    LEFT JOIN latest ON TRUE
    LEFT JOIN valuation_daily v
        ON v.asset_id = h.asset_id
       AND v.strategy_name = $1
       AND v.strategy_version = $2
       AND v.val_date = latest.val_date
    LEFT JOIN latest_card c ON c.asset_id = h.asset_id
    ORDER BY h.asset_id;`
)

// PortfolioStore manages holdings and their valuation join.
type PortfolioStore interface {
	UpsertHolding(ctx context.Context, holding Holding) error
	ListHoldings(ctx context.Context) ([]Holding, error)
	PortfolioValuations(ctx context.Context, strategyName, strategyVersion string) ([]PortfolioRow, error)
}

// PortfolioValuer is the read side consumed by proposal seeding and the API.
type PortfolioValuer interface {
	PortfolioValuations(ctx context.Context, strategyName, strategyVersion string) ([]PortfolioRow, error)
}

// UpsertHolding creates or replaces a portfolio position.
func (s *Store) UpsertHolding(ctx context.Context, holding Holding) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, upsertHoldingSQL,
		holding.AssetID,
		holding.Qty,
		holding.AvgCost.String(),
	); execErr != nil {
		return fmt.Errorf("upsert holding: %w", execErr)
	}
	return nil
}

// ListHoldings lists all portfolio positions.
func (s *Store) ListHoldings(ctx context.Context) ([]Holding, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listHoldingsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list holdings: %w", queryErr)
	}
	defer rows.Close()

	holdings := make([]Holding, 0)
	for rows.Next() {
		var (
			holding Holding
			costStr string
		)
		if scanErr := rows.Scan(&holding.AssetID, &holding.Qty, &costStr, &holding.TSUpdated); scanErr != nil {
			return nil, fmt.Errorf("scan holding: %w", scanErr)
		}
		cost, convErr := decimal.NewFromString(costStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse avg cost: %w", convErr)
		}
		holding.AvgCost = cost
		holdings = append(holdings, holding)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return holdings, nil
}

// PortfolioValuations joins holdings with their latest valuation for a
// strategy. Positions without a fresh valuation keep zero-valued fields.
func (s *Store) PortfolioValuations(ctx context.Context, strategyName, strategyVersion string) ([]PortfolioRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, portfolioValuationsSQL, strategyName, strategyVersion)
	if queryErr != nil {
		return nil, fmt.Errorf("portfolio valuations: %w", queryErr)
	}
	defer rows.Close()

	result := make([]PortfolioRow, 0)
	for rows.Next() {
		var (
			row        PortfolioRow
			costStr    string
			valDate    sql.NullTime
			market     sql.NullFloat64
			forecast   sql.NullFloat64
			gapPct     sql.NullFloat64
			confidence sql.NullFloat64
		)
		if scanErr := rows.Scan(
			&row.AssetID,
			&row.Name,
			&row.Qty,
			&costStr,
			&valDate,
			&market,
			&forecast,
			&gapPct,
			&confidence,
		); scanErr != nil {
			return nil, fmt.Errorf("scan portfolio row: %w", scanErr)
		}

		cost, convErr := decimal.NewFromString(costStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse avg cost: %w", convErr)
		}
		row.AvgCost = cost

		if valDate.Valid {
			row.ValDate = DateOf(valDate.Time)
		}
		row.MarketPrice = market.Float64
		row.ForecastPrice = forecast.Float64
		row.GapPct = gapPct.Float64
		row.Confidence = confidence.Float64

		result = append(result, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return result, nil
}

var _ PortfolioStore = (*Store)(nil)
var _ PortfolioValuer = (*Store)(nil)

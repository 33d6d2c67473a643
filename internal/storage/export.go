package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// tableExport describes how one table is dumped for a single snapshot date.
type tableExport struct {
	dateColumn string
	columns    []string
	orderBy    []string
}

var exportableTables = map[string]tableExport{
	"card_metadata": {
		dateColumn: "snapshot_date",
		columns: []string{
			"asset_id", "snapshot_date", "ptcg_card_id", "name", "set_id",
			"set_name", "set_release_date", "number", "rarity", "artist",
			"images_json", "raw_json", "ts_created",
		},
		orderBy: []string{"asset_id"},
	},
	"tcgplayer_price_snapshot": {
		dateColumn: "snapshot_date",
		columns: []string{
			"snapshot_date", "snapshot_ts", "asset_id", "variant", "currency",
			"market", "low", "mid", "high", "direct_low", "url",
			"source_updated_at", "extra",
		},
		orderBy: []string{"asset_id", "variant"},
	},
	"cardmarket_price_snapshot": {
		dateColumn: "snapshot_date",
		columns: []string{
			"snapshot_date", "snapshot_ts", "asset_id", "variant", "currency",
			"avg1", "avg7", "avg30", "low_price", "trend_price", "extra",
		},
		orderBy: []string{"asset_id", "variant"},
	},
	"valuation_daily": {
		dateColumn: "val_date",
		columns: []string{
			"val_date", "asset_id", "market_price", "smooth_price",
			"forecast_price", "gap", "gap_pct", "confidence", "rationale_json",
			"strategy_name", "strategy_version", "run_id", "ts_created",
		},
		orderBy: []string{"asset_id", "strategy_name", "strategy_version"},
	},
}

// TableDumper reads one day of one whitelisted table as text rows.
type TableDumper interface {
	DumpTable(ctx context.Context, table string, date time.Time) (headers []string, rows [][]string, err error)
}

// ExportableTables lists the tables DumpTable accepts, sorted by name.
func ExportableTables() []string {
	names := make([]string, 0, len(exportableTables))
	for name := range exportableTables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DumpTable returns all rows of a whitelisted table for one date, with every
// column rendered as text. NULL renders as the empty string.
func (s *Store) DumpTable(ctx context.Context, table string, date time.Time) ([]string, [][]string, error) {
	spec, ok := exportableTables[table]
	if !ok {
		return nil, nil, fmt.Errorf("table %q is not exportable", table)
	}

	pool, err := s.getPool()
	if err != nil {
		return nil, nil, err
	}

	selects := make([]string, len(spec.columns))
	for i, col := range spec.columns {
		selects[i] = fmt.Sprintf("COALESCE(%s::text, '')", col)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1 ORDER BY %s;",
		strings.Join(selects, ", "),
		table,
		spec.dateColumn,
		strings.Join(spec.orderBy, ", "),
	)

	rows, queryErr := pool.Query(ctx, query, DateOf(date))
	if queryErr != nil {
		return nil, nil, fmt.Errorf("dump table %s: %w", table, queryErr)
	}
	defer rows.Close()

	var result [][]string
	for rows.Next() {
		values := make([]string, len(spec.columns))
		targets := make([]interface{}, len(spec.columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if scanErr := rows.Scan(targets...); scanErr != nil {
			return nil, nil, fmt.Errorf("scan %s row: %w", table, scanErr)
		}
		result = append(result, values)
	}
	if rows.Err() != nil {
		return nil, nil, rows.Err()
	}

	headers := make([]string, len(spec.columns))
	copy(headers, spec.columns)
	return headers, result, nil
}

var _ TableDumper = (*Store)(nil)

package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"poke-platform/internal/config"
	"poke-platform/internal/storage"
)

// ObjectStore persists encoded export files to a remote bucket.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body []byte) error
}

// Exporter dumps whitelisted tables for one day as CSV, to local disk and
// optionally to an object store.
type Exporter struct {
	dumper storage.TableDumper
	store  ObjectStore
	cfg    config.ExportConfig
	logger zerolog.Logger
}

// NewExporter builds an Exporter. A nil store disables uploads.
func NewExporter(dumper storage.TableDumper, store ObjectStore, cfg config.ExportConfig, logger zerolog.Logger) *Exporter {
	return &Exporter{
		dumper: dumper,
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "export").Logger(),
	}
}

// TableResult records where one table's day landed.
type TableResult struct {
	Table     string
	Rows      int
	LocalPath string
	S3Key     string
}

// Summary covers one export pass.
type Summary struct {
	Date    time.Time
	Results []TableResult
}

// ExportDay dumps each configured table for the given day. Tables with no
// rows for the day are skipped. Any dump, write, or upload failure aborts
// the pass.
func (e *Exporter) ExportDay(ctx context.Context, day time.Time) (Summary, error) {
	day = storage.DateOf(day)
	dateStr := day.Format("2006-01-02")

	tables := e.cfg.Tables
	if len(tables) == 0 {
		tables = storage.ExportableTables()
	}

	summary := Summary{Date: day}
	for _, table := range tables {
		headers, rows, err := e.dumper.DumpTable(ctx, table, day)
		if err != nil {
			return summary, fmt.Errorf("dump table %s: %w", table, err)
		}
		if len(rows) == 0 {
			e.logger.Info().
				Str("table", table).
				Str("export_date", dateStr).
				Msg("no rows to export")
			continue
		}

		payload, err := encodeCSV(headers, rows)
		if err != nil {
			return summary, fmt.Errorf("encode %s csv: %w", table, err)
		}

		filename := fmt.Sprintf("%s-%s.csv", table, dateStr)
		localPath := filepath.Join(e.cfg.OutputDir, filename)
		if err := writeFile(localPath, payload); err != nil {
			return summary, fmt.Errorf("write %s: %w", localPath, err)
		}

		result := TableResult{Table: table, Rows: len(rows), LocalPath: localPath}

		if e.store != nil && e.cfg.S3.Bucket != "" {
			key := objectKey(e.cfg.S3.Prefix, table, dateStr)
			if err := e.store.Upload(ctx, key, payload); err != nil {
				return summary, fmt.Errorf("upload %s: %w", key, err)
			}
			result.S3Key = key
		}

		summary.Results = append(summary.Results, result)
		e.logger.Info().
			Str("table", table).
			Str("export_date", dateStr).
			Int("rows", result.Rows).
			Str("path", result.LocalPath).
			Str("s3_key", result.S3Key).
			Msg("table exported")
	}

	return summary, nil
}

func encodeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFile(path string, payload []byte) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// objectKey lays the file out hive-style so warehouse readers can partition
// on table and date.
func objectKey(prefix, table, date string) string {
	key := fmt.Sprintf("table=%s/snapshot_date=%s/%s-%s.csv", table, date, table, date)
	if trimmed := strings.Trim(prefix, "/"); trimmed != "" {
		key = trimmed + "/" + key
	}
	return key
}

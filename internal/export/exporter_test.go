package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poke-platform/internal/config"
)

type fakeDumper struct {
	headers map[string][]string
	rows    map[string][][]string
	err     error

	dumped []string
}

func (f *fakeDumper) DumpTable(_ context.Context, table string, _ time.Time) ([]string, [][]string, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.dumped = append(f.dumped, table)
	return f.headers[table], f.rows[table], nil
}

type fakeObjectStore struct {
	uploads map[string][]byte
	err     error
}

func (f *fakeObjectStore) Upload(_ context.Context, key string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	f.uploads[key] = body
	return nil
}

func exportDate() time.Time {
	return time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC)
}

func exportConfig(t *testing.T, tables ...string) config.ExportConfig {
	t.Helper()
	return config.ExportConfig{
		OutputDir: t.TempDir(),
		Tables:    tables,
		S3: config.S3Config{
			Bucket: "poke-warehouse",
			Prefix: "warehouse",
		},
	}
}

func TestExportDayWritesCSVAndUploads(t *testing.T) {
	dumper := &fakeDumper{
		headers: map[string][]string{
			"valuation_daily": {"val_date", "asset_id", "gap_pct"},
		},
		rows: map[string][][]string{
			"valuation_daily": {
				{"2026-08-25", "ptcg:base1-4", "-0.4"},
				{"2026-08-25", "ptcg:neo4-9", "0.2"},
			},
		},
	}
	store := &fakeObjectStore{}
	cfg := exportConfig(t, "valuation_daily")
	exporter := NewExporter(dumper, store, cfg, zerolog.Nop())

	summary, err := exporter.ExportDay(context.Background(), exportDate())
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	result := summary.Results[0]
	assert.Equal(t, "valuation_daily", result.Table)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "valuation_daily-2026-08-25.csv"), result.LocalPath)
	assert.Equal(t, "warehouse/table=valuation_daily/snapshot_date=2026-08-25/valuation_daily-2026-08-25.csv", result.S3Key)

	payload, err := os.ReadFile(result.LocalPath)
	require.NoError(t, err)
	assert.Equal(t,
		"val_date,asset_id,gap_pct\n2026-08-25,ptcg:base1-4,-0.4\n2026-08-25,ptcg:neo4-9,0.2\n",
		string(payload))

	assert.Equal(t, payload, store.uploads[result.S3Key])
}

func TestExportDaySkipsEmptyTables(t *testing.T) {
	dumper := &fakeDumper{
		headers: map[string][]string{
			"card_metadata":   {"asset_id"},
			"valuation_daily": {"val_date"},
		},
		rows: map[string][][]string{
			"card_metadata": {{"ptcg:base1-4"}},
		},
	}
	exporter := NewExporter(dumper, nil, exportConfig(t, "card_metadata", "valuation_daily"), zerolog.Nop())

	summary, err := exporter.ExportDay(context.Background(), exportDate())
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, "card_metadata", summary.Results[0].Table)
	assert.Equal(t, []string{"card_metadata", "valuation_daily"}, dumper.dumped)
}

func TestExportDayNilStoreSkipsUpload(t *testing.T) {
	dumper := &fakeDumper{
		headers: map[string][]string{"card_metadata": {"asset_id"}},
		rows:    map[string][][]string{"card_metadata": {{"ptcg:base1-4"}}},
	}
	exporter := NewExporter(dumper, nil, exportConfig(t, "card_metadata"), zerolog.Nop())

	summary, err := exporter.ExportDay(context.Background(), exportDate())
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Empty(t, summary.Results[0].S3Key)
	assert.NotEmpty(t, summary.Results[0].LocalPath)
}

func TestExportDayUploadFailureAborts(t *testing.T) {
	dumper := &fakeDumper{
		headers: map[string][]string{"card_metadata": {"asset_id"}},
		rows:    map[string][][]string{"card_metadata": {{"ptcg:base1-4"}}},
	}
	store := &fakeObjectStore{err: errors.New("access denied")}
	exporter := NewExporter(dumper, store, exportConfig(t, "card_metadata"), zerolog.Nop())

	_, err := exporter.ExportDay(context.Background(), exportDate())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload")
}

func TestExportDayDumpFailureAborts(t *testing.T) {
	dumper := &fakeDumper{err: errors.New("relation does not exist")}
	exporter := NewExporter(dumper, nil, exportConfig(t, "card_metadata"), zerolog.Nop())

	_, err := exporter.ExportDay(context.Background(), exportDate())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dump table card_metadata")
}

func TestObjectKeyLayout(t *testing.T) {
	assert.Equal(t,
		"warehouse/table=valuation_daily/snapshot_date=2026-08-25/valuation_daily-2026-08-25.csv",
		objectKey("warehouse", "valuation_daily", "2026-08-25"))
	assert.Equal(t,
		"table=valuation_daily/snapshot_date=2026-08-25/valuation_daily-2026-08-25.csv",
		objectKey("", "valuation_daily", "2026-08-25"))
	assert.Equal(t,
		"a/b/table=t/snapshot_date=d/t-d.csv",
		objectKey("/a/b/", "t", "d"))
}

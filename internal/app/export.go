package app

import (
	"context"

	"poke-platform/internal/export"
)

// Export dumps the day's table snapshots to CSV and, when a bucket is
// configured, uploads them to S3.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var objStore export.ObjectStore
	if a.Config.Export.S3.Bucket != "" {
		uploader, err := export.NewS3Uploader(ctx, a.Config.Export.S3, a.Logger)
		if err != nil {
			return err
		}
		objStore = uploader
	}

	exporter := export.NewExporter(store, objStore, a.Config.Export, a.Logger)
	summary, err := exporter.ExportDay(ctx, opts.Date)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Time("snapshot_date", summary.Date).
		Int("tables", len(summary.Results)).
		Msg("export finished")
	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"poke-platform/internal/export"
	"poke-platform/internal/storage"
	"poke-platform/internal/valuation"
)

// Chart renders an asset's market price next to its smoothed level as a PNG.
func (a *App) Chart(ctx context.Context, opts ChartOptions) error {
	if opts.AssetID == "" {
		return errors.New("asset id is required")
	}
	if opts.OutPath == "" {
		return errors.New("output path is required")
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	days := opts.Days
	if days <= 0 {
		days = a.Config.Strategy.LookbackDays
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	variants, err := store.AssetPriceHistory(ctx, opts.AssetID, since)
	if err != nil {
		return err
	}

	variant := opts.Variant
	var series []storage.PricePoint
	if variant != "" {
		series = variants[variant]
		if len(series) == 0 {
			return fmt.Errorf("no price history for variant %q of asset %s", variant, opts.AssetID)
		}
	} else {
		selector := valuation.VariantSelector{Preference: a.Config.Strategy.VariantPreference}
		var ok bool
		variant, series, ok = selector.Select(variants, storage.DateOf(time.Now().UTC()))
		if !ok {
			return fmt.Errorf("no price history for asset %s", opts.AssetID)
		}
	}

	input := export.ChartInput{
		AssetID:  opts.AssetID,
		Variant:  variant,
		Points:   series,
		Smoothed: valuation.SmoothSeries(series, a.Config.Strategy.Alpha),
	}
	if err := export.RenderPriceChart(opts.OutPath, input, a.Config.ResolveMaxChartPoints(opts.MaxPoints)); err != nil {
		return err
	}

	a.Logger.Info().
		Str("asset_id", opts.AssetID).
		Str("variant", variant).
		Int("points", len(series)).
		Str("path", opts.OutPath).
		Msg("chart rendered")
	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Track curates the set of assets the pipeline follows.
func (a *App) Track(ctx context.Context, opts TrackOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	switch {
	case opts.List:
		rows, err := store.ListTracked(ctx, opts.Limit)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintln(os.Stdout, "no tracked assets")
			return nil
		}
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Asset\tActive\tAdded (UTC)")
		for _, row := range rows {
			fmt.Fprintf(writer, "%s\t%t\t%s\n", row.AssetID, row.IsActive, row.TSAdded.UTC().Format(time.RFC3339))
		}
		return writer.Flush()

	case opts.RarityPattern != "":
		count, err := store.TrackByRarity(ctx, opts.RarityPattern)
		if err != nil {
			return err
		}
		a.Logger.Info().
			Str("pattern", opts.RarityPattern).
			Int64("assets", count).
			Msg("assets tracked by rarity")
		return nil

	case len(opts.AssetIDs) > 0:
		active := !opts.Deactivate
		count, err := store.SetTracked(ctx, opts.AssetIDs, active)
		if err != nil {
			return err
		}
		a.Logger.Info().
			Int64("assets", count).
			Bool("active", active).
			Msg("tracked flags updated")
		return nil

	default:
		return errors.New("nothing to do: pass --rarity, --assets, or --list")
	}
}

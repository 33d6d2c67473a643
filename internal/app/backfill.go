package app

import (
	"context"
	"errors"
	"time"

	"poke-platform/internal/storage"
	"poke-platform/internal/valuation"
)

// Backfill replays valuation runs over a date range using the price history
// already in the database. Days that already ran are skipped by the run guard.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	from := storage.DateOf(opts.From)
	to := storage.DateOf(opts.To)
	if to.Before(from) {
		return errors.New("backfill window is empty, check --from/--to")
	}

	strategy, err := valuation.NewStrategy(a.Config.Strategy)
	if err != nil {
		return err
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var runStore storage.ValuationRunStore = store
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: nothing will be written")
		runStore = dryRunStore{}
	}

	runner := valuation.NewRunner(strategy, store, runStore, a.Config.Strategy, a.Logger)

	processed := 0
	skipped := 0
	failed := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := runner.Run(ctx, day)
		if err != nil {
			failed++
			a.Logger.Error().Err(err).Time("run_date", day).Msg("backfill day failed")
			continue
		}
		if result.AlreadyRan {
			skipped++
			continue
		}
		processed++
	}

	a.Logger.Info().
		Int("processed", processed).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("backfill finished")
	if failed > 0 {
		return errors.New("some days failed to backfill, check the logs")
	}
	return nil
}

// dryRunStore satisfies the run protocol without writing anything.
type dryRunStore struct{}

func (dryRunStore) RunExists(context.Context, time.Time, string, string) (bool, error) {
	return false, nil
}

func (dryRunStore) CommitRun(context.Context, []storage.ValuationRecord, storage.RunRecord) error {
	return nil
}

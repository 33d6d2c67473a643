package app

import (
	"context"
	"time"
)

// SyncUniverse refreshes the card metadata universe for the given date.
func (a *App) SyncUniverse(ctx context.Context, day time.Time) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	pipeline, err := a.newPipeline(store)
	if err != nil {
		return err
	}

	_, err = pipeline.SyncUniverse(ctx, day)
	return err
}

// ExtractPrices derives price snapshot rows for the given date.
func (a *App) ExtractPrices(ctx context.Context, day time.Time) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	pipeline, err := a.newPipeline(store)
	if err != nil {
		return err
	}

	_, err = pipeline.ExtractPrices(ctx, day)
	return err
}

// RunValuation executes one valuation run for the given date.
func (a *App) RunValuation(ctx context.Context, day time.Time) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	pipeline, err := a.newPipeline(store)
	if err != nil {
		return err
	}

	_, err = pipeline.RunValuation(ctx, day)
	return err
}

// SeedProposals seeds the day's trade proposals.
func (a *App) SeedProposals(ctx context.Context, day time.Time) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	pipeline, err := a.newPipeline(store)
	if err != nil {
		return err
	}

	_, err = pipeline.SeedProposals(ctx, day)
	return err
}

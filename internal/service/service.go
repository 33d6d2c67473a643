package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"poke-platform/internal/alerting"
	"poke-platform/internal/config"
	"poke-platform/internal/extractor"
	"poke-platform/internal/proposals"
	"poke-platform/internal/storage"
	"poke-platform/internal/universe"
	"poke-platform/internal/valuation"
)

// UniverseSyncer refreshes the card metadata universe.
type UniverseSyncer interface {
	Sync(ctx context.Context, snapshotDate time.Time) (universe.Summary, error)
}

// PriceExtractor derives snapshot rows from stored card documents.
type PriceExtractor interface {
	Run(ctx context.Context, snapshotDate time.Time) (extractor.Summary, error)
}

// ValuationRunner executes one idempotent valuation run.
type ValuationRunner interface {
	Run(ctx context.Context, runDate time.Time) (valuation.RunResult, error)
}

// ProposalSeeder seeds the day's trade proposals.
type ProposalSeeder interface {
	Seed(ctx context.Context, day time.Time) (proposals.Summary, error)
}

// Pipeline orchestrates the daily processing chain: universe sync, price
// extraction, valuation, and proposal seeding. The valuation stage holds a
// postgres advisory lock so a manual run and the scheduled one never execute
// concurrently, and publishes a run summary when alerting is enabled.
type Pipeline struct {
	syncer    UniverseSyncer
	extractor PriceExtractor
	runner    ValuationRunner
	seeder    ProposalSeeder
	vals      storage.ValuationReader
	locker    storage.AdvisoryLocker
	notifier  alerting.Notifier
	logger    zerolog.Logger

	alertsOn        bool
	topGaps         int
	strategyName    string
	strategyVersion string
}

// New constructs the pipeline.
func New(cfg *config.Config, syncer UniverseSyncer, extractor PriceExtractor, runner ValuationRunner, seeder ProposalSeeder, vals storage.ValuationReader, locker storage.AdvisoryLocker, notifier alerting.Notifier, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		syncer:          syncer,
		extractor:       extractor,
		runner:          runner,
		seeder:          seeder,
		vals:            vals,
		locker:          locker,
		notifier:        notifier,
		logger:          logger.With().Str("component", "pipeline").Logger(),
		alertsOn:        cfg.Alerting.Enabled,
		topGaps:         cfg.Alerting.TopGaps,
		strategyName:    cfg.Strategy.Name,
		strategyVersion: cfg.Strategy.Version,
	}
}

// SyncUniverse refreshes card metadata for the given snapshot date.
func (p *Pipeline) SyncUniverse(ctx context.Context, day time.Time) (universe.Summary, error) {
	if p.syncer == nil {
		return universe.Summary{}, fmt.Errorf("universe syncer not configured")
	}
	return p.syncer.Sync(ctx, day)
}

// ExtractPrices derives price snapshot rows for the given snapshot date.
func (p *Pipeline) ExtractPrices(ctx context.Context, day time.Time) (extractor.Summary, error) {
	if p.extractor == nil {
		return extractor.Summary{}, fmt.Errorf("price extractor not configured")
	}
	return p.extractor.Run(ctx, day)
}

// RunValuation executes the valuation run for day under the advisory lock and
// dispatches the run summary alert. A lock held elsewhere skips the run
// without error.
func (p *Pipeline) RunValuation(ctx context.Context, day time.Time) (valuation.RunResult, error) {
	result := valuation.RunResult{RunDate: storage.DateOf(day)}
	if p.runner == nil {
		return result, fmt.Errorf("valuation runner not configured")
	}

	unlock, proceed, err := p.acquireLock(ctx)
	if err != nil {
		return result, err
	}
	if !proceed {
		p.logger.Info().
			Time("run_date", result.RunDate).
			Msg("valuation lock held elsewhere, skipping run")
		return result, nil
	}
	if unlock != nil {
		defer unlock()
	}

	result, err = p.runner.Run(ctx, day)
	if err != nil {
		return result, err
	}

	if result.Inserted > 0 {
		p.notifyRun(ctx, result)
	}
	return result, nil
}

// SeedProposals seeds trade proposals for day.
func (p *Pipeline) SeedProposals(ctx context.Context, day time.Time) (proposals.Summary, error) {
	if p.seeder == nil {
		return proposals.Summary{}, fmt.Errorf("proposal seeder not configured")
	}
	return p.seeder.Seed(ctx, day)
}

func (p *Pipeline) acquireLock(ctx context.Context) (func(), bool, error) {
	if p.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := p.locker.TryAdvisoryLock(ctx, storage.ValuationRunLockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// notifyRun publishes the run summary. Delivery failures are logged and never
// fail the run itself.
func (p *Pipeline) notifyRun(ctx context.Context, result valuation.RunResult) {
	if !p.alertsOn || p.notifier == nil {
		return
	}

	note := alerting.Notification{
		RunDate:         result.RunDate,
		StrategyName:    p.strategyName,
		StrategyVersion: p.strategyVersion,
		RunID:           result.RunID.String(),
		Inserted:        result.Inserted,
	}

	if p.vals != nil && p.topGaps > 0 {
		views, err := p.vals.TopValuations(ctx, storage.DirectionUndervalued, p.strategyName, p.strategyVersion, p.topGaps)
		if err != nil {
			p.logger.Error().Err(err).Msg("failed to load top gaps for alert")
		} else {
			for _, view := range views {
				note.TopUndervalued = append(note.TopUndervalued, alerting.GapLine{
					AssetID: view.AssetID,
					Name:    view.Name,
					GapPct:  view.GapPct,
				})
			}
		}
	}

	if err := p.notifier.Notify(ctx, note); err != nil {
		p.logger.Error().Err(err).
			Time("run_date", result.RunDate).
			Msg("failed to dispatch run summary")
	}
}

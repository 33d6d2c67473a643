package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"

	"poke-platform/internal/config"
	"poke-platform/internal/storage"
)

// Runner drives one idempotent valuation run: guard against repeats, fetch
// eligible history, compute candidates, and commit everything in a single
// transaction.
type Runner struct {
	strategy Strategy
	history  storage.HistorySource
	vals     storage.ValuationRunStore
	cfg      config.StrategyConfig
	logger   zerolog.Logger
}

// NewRunner constructs the run coordinator.
func NewRunner(strategy Strategy, history storage.HistorySource, vals storage.ValuationRunStore, cfg config.StrategyConfig, logger zerolog.Logger) *Runner {
	return &Runner{
		strategy: strategy,
		history:  history,
		vals:     vals,
		cfg:      cfg,
		logger:   logger.With().Str("component", "valuation").Logger(),
	}
}

// RunResult summarizes one run attempt.
type RunResult struct {
	RunID      uuid.UUID
	RunDate    time.Time
	Inserted   int
	AlreadyRan bool
}

// Run executes the valuation protocol for runDate. A repeat invocation for a
// (run date, strategy, version) that already committed reports AlreadyRan
// without touching any rows.
func (r *Runner) Run(ctx context.Context, runDate time.Time) (RunResult, error) {
	runDate = storage.DateOf(runDate)
	result := RunResult{RunDate: runDate}

	exists, err := r.vals.RunExists(ctx, runDate, r.strategy.Name(), r.strategy.Version())
	if err != nil {
		return result, fmt.Errorf("check run guard: %w", err)
	}
	if exists {
		r.logger.Info().
			Time("run_date", runDate).
			Str("strategy", r.strategy.Name()).
			Str("version", r.strategy.Version()).
			Msg("run already recorded, skipping")
		result.AlreadyRan = true
		return result, nil
	}

	runID := uuid.New()

	filter := storage.HistoryFilter{
		Start:          runDate.AddDate(0, 0, -r.cfg.LookbackDays),
		End:            runDate,
		MinMarketPrice: r.cfg.MinMarketPrice,
		Variants:       r.cfg.VariantPreference,
		RarityFilter:   r.cfg.RarityFilter,
	}
	history, err := r.history.FetchEligibleHistory(ctx, filter)
	if err != nil {
		return result, fmt.Errorf("fetch eligible history: %w", err)
	}

	records := r.strategy.ComputeCandidates(history, runDate, runID)

	run := storage.RunRecord{
		RunID:           runID,
		RunDate:         runDate,
		StrategyName:    r.strategy.Name(),
		StrategyVersion: r.strategy.Version(),
		StartedAt:       time.Now().UTC(),
		InsertedCount:   len(records),
		Note:            fmt.Sprintf("assets_considered=%d", len(history)),
	}
	if err := r.vals.CommitRun(ctx, records, run); err != nil {
		if errors.Is(err, storage.ErrRunExists) {
			r.logger.Info().
				Time("run_date", runDate).
				Str("strategy", r.strategy.Name()).
				Msg("concurrent run committed first, skipping")
			result.AlreadyRan = true
			return result, nil
		}
		return result, fmt.Errorf("commit run: %w", err)
	}

	result.RunID = runID
	result.Inserted = len(records)
	r.logSummary(runDate, runID, history, records)
	return result, nil
}

func (r *Runner) logSummary(runDate time.Time, runID uuid.UUID, history storage.AssetHistory, records []storage.ValuationRecord) {
	event := r.logger.Info().
		Time("run_date", runDate).
		Str("run_id", runID.String()).
		Str("strategy", r.strategy.Name()).
		Str("version", r.strategy.Version()).
		Int("assets_considered", len(history)).
		Int("inserted", len(records))

	if len(records) > 0 {
		gaps := make([]float64, len(records))
		for i, rec := range records {
			gaps[i] = rec.GapPct
		}
		mean, _ := stats.Mean(gaps)
		min, _ := stats.Min(gaps)
		max, _ := stats.Max(gaps)
		event = event.
			Float64("gap_pct_mean", mean).
			Float64("gap_pct_min", min).
			Float64("gap_pct_max", max)
	}

	event.Msg("valuation run committed")
}

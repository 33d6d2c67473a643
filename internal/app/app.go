package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"poke-platform/internal/alerting"
	"poke-platform/internal/config"
	"poke-platform/internal/extractor"
	"poke-platform/internal/proposals"
	"poke-platform/internal/scheduler"
	"poke-platform/internal/service"
	"poke-platform/internal/storage"
	"poke-platform/internal/universe"
	"poke-platform/internal/valuation"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// requireStore opens the store and applies the schema. Commands that cannot
// operate without persistence go through here.
func (a *App) requireStore(ctx context.Context) (*storage.Store, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, errors.New("database.dsn not configured")
	}
	if err := store.EnsureSchema(ctx); err != nil {
		closeStore()
		return nil, nil, err
	}
	return store, closeStore, nil
}

func (a *App) newPipeline(store *storage.Store) (*service.Pipeline, error) {
	strategy, err := valuation.NewStrategy(a.Config.Strategy)
	if err != nil {
		return nil, err
	}

	feed := universe.NewClient(universe.Options{
		BaseURL:       a.Config.Universe.BaseURL,
		APIKey:        a.Config.Universe.APIKey,
		UserAgent:     a.Config.Universe.UserAgent,
		Timeout:       a.Config.Universe.RequestTimeout,
		MaxRetries:    a.Config.Universe.MaxRetries,
		RetryBackoff:  a.Config.Universe.RetryBackoff,
		SetsPageSize:  a.Config.Universe.SetsPageSize,
		CardsPageSize: a.Config.Universe.CardsPageSize,
	}, a.Logger)

	syncer := universe.NewSyncer(feed, store, a.Config.Universe.ReleaseCutoffYears, a.Logger)
	extract := extractor.New(store, store, a.Logger)
	runner := valuation.NewRunner(strategy, store, store, a.Config.Strategy, a.Logger)
	seeder := proposals.NewGenerator(store, store, store, a.Config, a.Logger)

	return service.New(a.Config, syncer, extract, runner, seeder, store, store, a.newNotifier(), a.Logger), nil
}

// Daemon runs the scheduled daily pipeline until interrupted.
func (a *App) Daemon(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	pipeline, err := a.newPipeline(store)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(ctx, a.Config.Scheduler.Timezone, a.Logger)
	if err != nil {
		return err
	}

	today := func() time.Time { return time.Now().UTC() }
	jobs := []struct {
		spec string
		job  scheduler.Job
	}{
		{a.Config.Scheduler.UniverseSpec, scheduler.NewJob("universe_sync", func(ctx context.Context) error {
			_, err := pipeline.SyncUniverse(ctx, today())
			return err
		})},
		{a.Config.Scheduler.ExtractSpec, scheduler.NewJob("price_extract", func(ctx context.Context) error {
			_, err := pipeline.ExtractPrices(ctx, today())
			return err
		})},
		{a.Config.Scheduler.RunSpec, scheduler.NewJob("valuation_run", func(ctx context.Context) error {
			_, err := pipeline.RunValuation(ctx, today())
			return err
		})},
		{a.Config.Scheduler.ProposeSpec, scheduler.NewJob("proposal_seed", func(ctx context.Context) error {
			_, err := pipeline.SeedProposals(ctx, today())
			return err
		})},
	}
	for _, entry := range jobs {
		if err := sched.AddJob(entry.spec, entry.job); err != nil {
			return err
		}
	}

	sched.Start()
	a.Logger.Info().Str("timezone", a.Config.Scheduler.Timezone).Msg("daemon started")

	<-ctx.Done()
	sched.Stop()
	a.Logger.Info().Msg("daemon stopped")
	return nil
}

// ExportOptions configure the warehouse export command.
type ExportOptions struct {
	Date time.Time
}

// ChartOptions configure the chart command.
type ChartOptions struct {
	AssetID   string
	Variant   string
	Days      int
	OutPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Kind  string
	Limit int
}

// TrackOptions configure the track command.
type TrackOptions struct {
	RarityPattern string
	AssetIDs      []string
	Deactivate    bool
	List          bool
	Limit         int
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	From   time.Time
	To     time.Time
	DryRun bool
}

// SimulateOptions configure the simulate command.
type SimulateOptions struct {
	CSVPath string
	AssetID string
	Notify  bool
}

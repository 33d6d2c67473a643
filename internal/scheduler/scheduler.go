package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one scheduled pipeline step.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

// NewJob adapts a function to the Job interface.
func NewJob(name string, fn func(ctx context.Context) error) Job {
	return funcJob{name: name, fn: fn}
}

// Scheduler drives the daily pipeline on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	logger zerolog.Logger
}

// New builds a scheduler in the given timezone. Jobs run with ctx, so
// cancelling it stops in-flight work during shutdown.
func New(ctx context.Context, timezone string, logger zerolog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		ctx:    ctx,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// AddJob registers a job under a five-field cron spec.
func (s *Scheduler) AddJob(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		s.logger.Info().Str("job", job.Name()).Msg("job started")

		if runErr := job.Run(s.ctx); runErr != nil {
			s.logger.Error().
				Err(runErr).
				Str("job", job.Name()).
				Dur("duration", time.Since(start)).
				Msg("job failed")
			return
		}

		s.logger.Info().
			Str("job", job.Name()).
			Dur("duration", time.Since(start)).
			Msg("job completed")
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", job.Name(), err)
	}

	s.logger.Info().
		Str("job", job.Name()).
		Str("schedule", spec).
		Msg("job registered")
	return nil
}

// Start begins firing jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

// Package scheduler runs background maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// JobFunc is one run of a job. The context is cancelled when the scheduler
// stops.
type JobFunc func(ctx context.Context) error

// Scheduler wraps gocron with logging and a shutdown context.
type Scheduler struct {
	cron    *gocron.Scheduler
	logger  zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// New returns a stopped scheduler. Each run gets at most timeout.
func New(logger zerolog.Logger, timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		cron:    s,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}
}

// Register schedules fn under name on a five-field cron spec.
func (s *Scheduler) Register(name, spec string, fn JobFunc) error {
	_, err := s.cron.Cron(spec).Tag(name).Do(func() { s.run(name, fn) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	for _, j := range s.cron.Jobs() {
		s.logger.Info().Strs("tags", j.Tags()).Time("next_run", j.NextRun()).Msg("job scheduled")
	}
}

// Stop cancels running jobs and waits for the scheduler to halt.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
}

func (s *Scheduler) run(name string, fn JobFunc) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("job", name).Interface("panic", r).Msg("job panicked")
		}
	}()

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.Error().Err(err).Str("job", name).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	s.logger.Info().Str("job", name).Dur("took", time.Since(start)).Msg("job finished")
}

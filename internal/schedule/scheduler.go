// Package schedule triggers nightly runs from a cron expression for daemon mode.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/neon/internal/foundation/errors"
	"git.home.luguber.info/inful/neon/internal/logfields"
)

// JobName identifies the nightly job inside the scheduler.
const JobName = "nightly"

// RunFunc performs one nightly run.
type RunFunc func(ctx context.Context) error

// Scheduler wraps a gocron scheduler holding the single nightly job. Runs never
// overlap: a trigger that fires while a run is active is skipped.
type Scheduler struct {
	scheduler gocron.Scheduler
	run       RunFunc

	mu   sync.Mutex
	job  gocron.Job
	cron string
}

// Option customizes a Scheduler.
type Option func(*options)

type options struct {
	clock    clockwork.Clock
	location *time.Location
}

// WithClock drives the scheduler from c instead of the wall clock.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLocation interprets cron expressions in loc (UTC by default).
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.location = loc }
}

// New creates a scheduler that calls run on every trigger.
func New(run RunFunc, opts ...Option) (*Scheduler, error) {
	o := options{clock: clockwork.NewRealClock(), location: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}
	s, err := gocron.NewScheduler(gocron.WithClock(o.clock), gocron.WithLocation(o.location))
	if err != nil {
		return nil, errors.InternalError("failed to create scheduler").WithCause(err).Build()
	}
	return &Scheduler{scheduler: s, run: run}, nil
}

// Schedule installs or replaces the nightly job for the cron expression.
func (s *Scheduler) Schedule(cron string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != nil && cron == s.cron {
		return nil
	}
	def := gocron.CronJob(cron, false)
	task := gocron.NewTask(s.execute)
	jobOpts := []gocron.JobOption{
		gocron.WithName(JobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}

	var (
		job gocron.Job
		err error
	)
	if s.job == nil {
		job, err = s.scheduler.NewJob(def, task, jobOpts...)
	} else {
		job, err = s.scheduler.Update(s.job.ID(), def, task, jobOpts...)
	}
	if err != nil {
		return errors.ValidationError("invalid schedule").
			WithCause(err).
			WithContext("cron", cron).
			Build()
	}
	s.job, s.cron = job, cron
	slog.Info("Nightly run scheduled", slog.String("cron", cron))
	return nil
}

// Cron returns the active cron expression.
func (s *Scheduler) Cron() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron
}

// NextRun returns when the nightly job fires next.
func (s *Scheduler) NextRun() (time.Time, error) {
	s.mu.Lock()
	job := s.job
	s.mu.Unlock()
	if job == nil {
		return time.Time{}, errors.InternalError("no nightly job scheduled").Build()
	}
	return job.NextRun()
}

// RunNow triggers the nightly job immediately, honoring singleton mode.
func (s *Scheduler) RunNow() error {
	s.mu.Lock()
	job := s.job
	s.mu.Unlock()
	if job == nil {
		return errors.InternalError("no nightly job scheduled").Build()
	}
	return job.RunNow()
}

// Start begins scheduling; it does not block.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down, cancelling the context of a running job.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// execute is the gocron task; the context is cancelled on shutdown.
func (s *Scheduler) execute(ctx context.Context) {
	slog.Info("Scheduled run triggered")
	if err := s.run(ctx); err != nil {
		slog.Error("Scheduled run failed", logfields.Error(err))
	}
}

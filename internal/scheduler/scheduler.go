// Package scheduler wraps robfig/cron and hosts the recurring jobs:
// portfolio snapshots, loan liquidation sweeps, protection expiry,
// installment reminders and history pruning.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one recurring unit of work. Run returns an error instead of
// logging internally so the scheduler owns failure reporting for every
// job uniformly.
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages the background jobs.
type Scheduler struct {
	cron *cron.Cron
	jobs []string
	log  zerolog.Logger
}

// New creates a new scheduler.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Strs("jobs", s.jobs).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job on a cron schedule (seconds field included,
// e.g. "0 */5 * * * *" for every five minutes). A failing run is logged
// and the schedule keeps going: one bad liquidation sweep must not stop
// the next one.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	jobLog := s.log.With().Str("job", job.Name()).Logger()

	_, err := s.cron.AddFunc(schedule, func() {
		start := time.Now()
		if err := job.Run(); err != nil {
			jobLog.Error().Err(err).Dur("duration", time.Since(start)).Msg("Job failed")
			return
		}
		jobLog.Debug().Dur("duration", time.Since(start)).Msg("Job completed")
	})
	if err != nil {
		return err
	}

	s.jobs = append(s.jobs, job.Name())
	jobLog.Info().Str("schedule", schedule).Msg("Job registered")
	return nil
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}

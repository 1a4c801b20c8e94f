// Package scheduler wraps robfig/cron to run the platform's recurring
// cycles: the tiered collector, the reconciliation engine, the wallet
// refresher, and each Central Intelligence Layer engine.
package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is anything the scheduler can run on a cron tick.
type Job interface {
	Run() error
	Name() string
}

// Scheduler owns a cron instance and logs every job's outcome.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New builds a Scheduler using the standard 5-field cron parser.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// AddJob registers job on the given cron schedule expression.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.runWithRecovery(job)
	})
	return err
}

// RunNow executes job immediately, outside the cron schedule, useful for
// startup warm-up runs.
func (s *Scheduler) RunNow(job Job) {
	s.runWithRecovery(job)
}

func (s *Scheduler) runWithRecovery(job Job) {
	jobLog := s.log.With().Str("job", job.Name()).Logger()

	defer func() {
		if r := recover(); r != nil {
			jobLog.Error().Interface("panic", r).Msg("job panicked")
		}
	}()

	jobLog.Debug().Msg("job starting")
	if err := job.Run(); err != nil {
		jobLog.Error().Err(err).Msg("job failed")
		return
	}
	jobLog.Debug().Msg("job completed")
}

// Start begins running registered jobs on their schedules.
func (s *Scheduler) Start() {
	s.log.Info().Msg("scheduler starting")
	s.cron.Start()
}

// Stop halts the scheduler, waiting for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

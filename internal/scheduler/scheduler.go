// Package scheduler runs configured rotation jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ysnap/internal/config"
	"ysnap/internal/ysnap"
)

// RunFunc performs one rotation for job.
type RunFunc func(ctx context.Context, job config.JobConfig) error

// Scheduler triggers jobs on their cron schedules. Jobs never overlap: a
// trigger that fires while any rotation is running waits for it, and a job
// that is still running when it fires again is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger ysnap.Logger
	run    RunFunc

	mu      sync.Mutex // serializes rotations
	ctx     context.Context
	entries map[string]cron.EntryID
}

// New creates a Scheduler that calls run for every triggered job.
func New(logger ysnap.Logger, run RunFunc) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		run:     run,
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
	}
}

// ValidateSchedule checks a standard five-field cron expression or a
// descriptor such as "@daily" or "@every 6h".
func ValidateSchedule(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// Add registers job. Jobs without a schedule are rejected.
func (s *Scheduler) Add(job config.JobConfig) error {
	if job.Schedule == "" {
		return fmt.Errorf("job %q has no schedule", job.Name)
	}
	sched, err := cron.ParseStandard(job.Schedule)
	if err != nil {
		return fmt.Errorf("job %q: invalid schedule %q: %w", job.Name, job.Schedule, err)
	}
	if _, ok := s.entries[job.Name]; ok {
		return fmt.Errorf("job %q already scheduled", job.Name)
	}

	id := s.cron.Schedule(sched, cron.FuncJob(func() { s.trigger(job) }))
	s.entries[job.Name] = id
	return nil
}

// Next returns when job will next run. Zero if unknown or not started.
func (s *Scheduler) Next(name string) time.Time {
	id, ok := s.entries[name]
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for
// a running rotation to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.entries) == 0 {
		return fmt.Errorf("no scheduled jobs")
	}
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	for name := range s.entries {
		s.logger.Info("job scheduled", "job", name, "next", s.Next(name).Format(time.RFC3339))
	}

	<-ctx.Done()
	s.logger.Info("scheduler stopping")
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) trigger(job config.JobConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	s.logger.Info("job triggered", "job", job.Name)
	if err := s.run(s.ctx, job); err != nil {
		s.logger.Error("job failed", "job", job.Name, "error", err)
		return
	}
	s.logger.Info("job finished", "job", job.Name, "next", s.Next(job.Name).Format(time.RFC3339))
}

// cronLogger adapts ysnap.Logger to cron.Logger.
type cronLogger struct {
	logger ysnap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

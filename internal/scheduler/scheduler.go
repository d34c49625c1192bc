// Package scheduler runs periodic maintenance jobs inside the server process.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/huzaifasad/backendforfamily/internal/task"
)

// Sweeper marks overdue tasks late.
type Sweeper interface {
	SweepLate(now time.Time) (task.SweepResult, error)
	Now() time.Time
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	logger  *slog.Logger

	// ctx is handed to jobs added with Add and cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc
}

// parser accepts both five-field and six-field (with seconds) specs as well
// as descriptors such as "@hourly" and "@every 15m".
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New schedules the late sweep at spec. Overlapping runs are skipped.
func New(spec string, sweeper Sweeper, logger *slog.Logger) (*Scheduler, error) {
	cl := cronLogger{logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sweeper: sweeper,
		logger:  logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce() }); err != nil {
		return nil, fmt.Errorf("schedule late sweep %q: %w", spec, err)
	}
	return s, nil
}

// Add schedules another named job at spec.
func (s *Scheduler) Add(name, spec string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			s.logger.Error("job failed", "job", name, "error", err)
			return
		}
		s.logger.Info("job finished", "job", name, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops scheduling and waits for a running job or ctx, whichever is first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
		return
	}
	s.logger.Info("scheduler stopped")
}

// RunOnce performs one late sweep now.
func (s *Scheduler) RunOnce() (task.SweepResult, error) {
	start := time.Now()
	res, err := s.sweeper.SweepLate(s.sweeper.Now())
	if err != nil {
		s.logger.Error("late sweep failed", "error", err)
		return res, err
	}
	s.logger.Info("late sweep finished",
		"scanned", res.Scanned, "updated", res.Updated, "duration", time.Since(start))
	return res, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
